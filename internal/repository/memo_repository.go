package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/contact-book-api/internal/models"
)

// MemoRepository stores one support memo per student.
type MemoRepository struct {
	db *sqlx.DB
}

// NewMemoRepository constructs a MemoRepository.
func NewMemoRepository(db *sqlx.DB) *MemoRepository {
	return &MemoRepository{db: db}
}

// FindByStudent returns the memo for a student.
func (r *MemoRepository) FindByStudent(ctx context.Context, studentID string) (*models.SupportMemo, error) {
	const query = `SELECT student_id, content, created_at, last_updated FROM support_memos WHERE student_id = $1`
	var memo models.SupportMemo
	if err := r.db.GetContext(ctx, &memo, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find support memo: %w", err)
	}
	return &memo, nil
}

// ListByStudents returns the memos of the given students.
func (r *MemoRepository) ListByStudents(ctx context.Context, studentIDs []string) ([]models.SupportMemo, error) {
	if len(studentIDs) == 0 {
		return []models.SupportMemo{}, nil
	}
	const query = `SELECT student_id, content, created_at, last_updated FROM support_memos WHERE student_id = ANY($1) ORDER BY student_id`
	var memos []models.SupportMemo
	if err := r.db.SelectContext(ctx, &memos, query, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("list support memos: %w", err)
	}
	return memos, nil
}

// Upsert writes the memo content, keeping the original created_at.
func (r *MemoRepository) Upsert(ctx context.Context, memo *models.SupportMemo) error {
	const query = `INSERT INTO support_memos (student_id, content, created_at, last_updated)
VALUES ($1, $2, $3, $4)
ON CONFLICT (student_id) DO UPDATE SET content = EXCLUDED.content, last_updated = EXCLUDED.last_updated
RETURNING created_at`
	if err := r.db.QueryRowxContext(ctx, query, memo.StudentID, memo.Content, memo.CreatedAt, memo.LastUpdated).Scan(&memo.CreatedAt); err != nil {
		return fmt.Errorf("upsert support memo: %w", err)
	}
	return nil
}
