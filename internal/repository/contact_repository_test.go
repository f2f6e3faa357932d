package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/contact-book-api/internal/models"
)

var contactRowColumns = []string{"id", "student_id", "created_at", "contact_date", "sender_name", "message", "items_notice", "remarks", "home_reply", "read_state", "attachment_path", "reply_attachment_path", "updated_at"}

func TestContactAppendAssignsID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewContactRepository(db)

	mock.ExpectExec("INSERT INTO contact_messages").WillReturnResult(sqlmock.NewResult(1, 1))

	studentID := "S1"
	unread := models.ReadStateUnread
	id, err := repo.Append(context.Background(), &models.ContactMessage{
		StudentID:   &studentID,
		ContactDate: time.Now(),
		SenderName:  "Ms. A",
		Message:     "hello",
		ReadState:   &unread,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactFindByIDScansNullableColumns(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewContactRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(contactRowColumns).
		AddRow("m1", "S1", now, now, "Ms. A", "hello", "", "watch sleep", "thanks", "read", "", "", now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM contact_messages WHERE id = $1")).
		WithArgs("m1").
		WillReturnRows(rows)

	msg, err := repo.FindByID(context.Background(), "m1")
	require.NoError(t, err)
	require.NotNil(t, msg.StudentID)
	assert.Equal(t, "S1", *msg.StudentID)
	assert.True(t, msg.IsRead())
	assert.True(t, msg.Replied())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactListBroadcasts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewContactRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(contactRowColumns).
		AddRow("b1", nil, now, now, "Ms. A", "sports day", "", "", nil, nil, "", "", now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM contact_messages WHERE student_id IS NULL ORDER BY created_at DESC")).
		WillReturnRows(rows)

	msgs, err := repo.ListBroadcasts(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsBroadcast())
	assert.Nil(t, msgs[0].ReadState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactUpdateFieldsIsIdempotent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewContactRepository(db)

	query := regexp.QuoteMeta("UPDATE contact_messages SET read_state = $2, " +
		"updated_at = CASE WHEN (read_state) IS DISTINCT FROM ($2) THEN $3 ELSE updated_at END WHERE id = $1")
	mock.ExpectExec(query).WithArgs("m1", "read", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("m1", "read", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))

	fields := map[string]interface{}{models.FieldReadState: models.ReadStateRead}
	require.NoError(t, repo.UpdateFields(context.Background(), "m1", fields))
	require.NoError(t, repo.UpdateFields(context.Background(), "m1", fields))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactUpdateFieldsOrdersColumns(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewContactRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE contact_messages SET home_reply = $2, reply_attachment_path = $3, "+
		"updated_at = CASE WHEN (home_reply, reply_attachment_path) IS DISTINCT FROM ($2, $3) THEN $4 ELSE updated_at END WHERE id = $1")).
		WithArgs("m1", "ok", "2026/10/x.png", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateFields(context.Background(), "m1", map[string]interface{}{
		models.FieldReplyAttachmentPath: "2026/10/x.png",
		models.FieldHomeReply:           "ok",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactUpdateFieldsRejectsImmutableColumns(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewContactRepository(db)

	err := repo.UpdateFields(context.Background(), "m1", map[string]interface{}{"remarks": "x"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactUpdateFieldsMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewContactRepository(db)

	mock.ExpectExec("UPDATE contact_messages").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateFields(context.Background(), "gone", map[string]interface{}{models.FieldHomeReply: "hi"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
