package models

import "time"

// CalendarEvent is a school event addressed to one or more classes.
type CalendarEvent struct {
	ID             string    `db:"id" json:"id"`
	EventDate      time.Time `db:"event_date" json:"event_date"`
	Name           string    `db:"name" json:"name"`
	Description    string    `db:"description" json:"description,omitempty"`
	TargetClasses  string    `db:"target_classes" json:"target_classes"`
	AttachmentPath string    `db:"attachment_path" json:"attachment_path,omitempty"`
	CreatedBy      string    `db:"created_by" json:"created_by"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`

	AttachmentURL string `db:"-" json:"attachment_url,omitempty"`
}

// Targets returns the parsed target class tags.
func (e CalendarEvent) Targets() []string {
	return ParseClassTags(e.TargetClasses)
}

// CreateEventRequest is the payload for adding a calendar event.
type CreateEventRequest struct {
	EventDate      string   `json:"event_date" validate:"required,datetime=2006-01-02"`
	Name           string   `json:"name" validate:"required,max=200"`
	Description    string   `json:"description"`
	TargetClasses  []string `json:"target_classes"`
	AttachmentPath string   `json:"attachment_path"`
}
