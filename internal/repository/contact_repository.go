package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/contact-book-api/internal/models"
)

const contactColumns = `id, student_id, created_at, contact_date, sender_name, message, items_notice, remarks, home_reply, read_state, attachment_path, reply_attachment_path, updated_at`

// mutableContactFields are the only columns UpdateFields may touch.
var mutableContactFields = map[string]struct{}{
	models.FieldHomeReply:           {},
	models.FieldReadState:           {},
	models.FieldReplyAttachmentPath: {},
}

// ContactRepository is the per-student contact log plus the shared broadcast log.
type ContactRepository struct {
	db *sqlx.DB
}

// NewContactRepository constructs a ContactRepository.
func NewContactRepository(db *sqlx.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// Append stores a new message and returns its identifier.
func (r *ContactRepository) Append(ctx context.Context, msg *models.ContactMessage) (string, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now
	const query = `INSERT INTO contact_messages (id, student_id, created_at, contact_date, sender_name, message, items_notice, remarks, home_reply, read_state, attachment_path, reply_attachment_path, updated_at)
VALUES (:id, :student_id, :created_at, :contact_date, :sender_name, :message, :items_notice, :remarks, :home_reply, :read_state, :attachment_path, :reply_attachment_path, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, msg); err != nil {
		return "", fmt.Errorf("append contact message: %w", err)
	}
	return msg.ID, nil
}

// FindByID returns a message from either log.
func (r *ContactRepository) FindByID(ctx context.Context, id string) (*models.ContactMessage, error) {
	query := `SELECT ` + contactColumns + ` FROM contact_messages WHERE id = $1`
	var msg models.ContactMessage
	if err := r.db.GetContext(ctx, &msg, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find contact message: %w", err)
	}
	return &msg, nil
}

// ListByStudent returns a student's log, newest first.
func (r *ContactRepository) ListByStudent(ctx context.Context, studentID string) ([]models.ContactMessage, error) {
	query := `SELECT ` + contactColumns + ` FROM contact_messages WHERE student_id = $1 ORDER BY created_at DESC, id DESC`
	var msgs []models.ContactMessage
	if err := r.db.SelectContext(ctx, &msgs, query, studentID); err != nil {
		return nil, fmt.Errorf("list contact messages by student: %w", err)
	}
	return msgs, nil
}

// ListByStudents returns the logs of several students merged, newest first.
func (r *ContactRepository) ListByStudents(ctx context.Context, studentIDs []string) ([]models.ContactMessage, error) {
	if len(studentIDs) == 0 {
		return []models.ContactMessage{}, nil
	}
	query := `SELECT ` + contactColumns + ` FROM contact_messages WHERE student_id = ANY($1) ORDER BY created_at DESC, id DESC`
	var msgs []models.ContactMessage
	if err := r.db.SelectContext(ctx, &msgs, query, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("list contact messages by students: %w", err)
	}
	return msgs, nil
}

// ListBroadcasts returns the shared broadcast log, newest first.
func (r *ContactRepository) ListBroadcasts(ctx context.Context) ([]models.ContactMessage, error) {
	query := `SELECT ` + contactColumns + ` FROM contact_messages WHERE student_id IS NULL ORDER BY created_at DESC, id DESC`
	var msgs []models.ContactMessage
	if err := r.db.SelectContext(ctx, &msgs, query); err != nil {
		return nil, fmt.Errorf("list broadcasts: %w", err)
	}
	return msgs, nil
}

// UpdateFields overwrites mutable columns of one row. Writing the same values
// twice leaves the row unchanged, updated_at included. It returns sql.ErrNoRows
// when the row is gone.
func (r *ContactRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return fmt.Errorf("update contact message: no fields")
	}
	columns := make([]string, 0, len(fields))
	for column := range fields {
		if _, ok := mutableContactFields[column]; !ok {
			return fmt.Errorf("update contact message: field %q is immutable", column)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	sets := make([]string, 0, len(columns)+1)
	placeholders := make([]string, 0, len(columns))
	args := []interface{}{id}
	for _, column := range columns {
		args = append(args, fields[column])
		placeholder := fmt.Sprintf("$%d", len(args))
		placeholders = append(placeholders, placeholder)
		sets = append(sets, fmt.Sprintf("%s = %s", column, placeholder))
	}
	// updated_at only moves when a value actually changes; SET expressions see the old row.
	args = append(args, time.Now().UTC())
	sets = append(sets, fmt.Sprintf("updated_at = CASE WHEN (%s) IS DISTINCT FROM (%s) THEN $%d ELSE updated_at END",
		strings.Join(columns, ", "), strings.Join(placeholders, ", "), len(args)))

	query := fmt.Sprintf("UPDATE contact_messages SET %s WHERE id = $1", strings.Join(sets, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update contact message: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update contact message rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
