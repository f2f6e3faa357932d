package models

import "time"

// SupportMemo is the single free-text support note kept per student.
type SupportMemo struct {
	StudentID   string    `db:"student_id" json:"student_id"`
	Content     string    `db:"content" json:"content"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	LastUpdated time.Time `db:"last_updated" json:"last_updated"`
}

// SaveMemoRequest replaces a memo's content.
type SaveMemoRequest struct {
	Content string `json:"content"`
}
