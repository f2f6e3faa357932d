package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/contact-book-api/internal/models"
)

// CalendarRepository stores school calendar events.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository constructs a CalendarRepository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

const insertCalendarEvent = `INSERT INTO calendar_events (id, event_date, name, description, target_classes, attachment_path, created_by, created_at)
VALUES (:id, :event_date, :name, :description, :target_classes, :attachment_path, :created_by, :created_at)`

// Create persists a new event.
func (r *CalendarRepository) Create(ctx context.Context, event *models.CalendarEvent) error {
	prepareEvent(event, time.Now().UTC())
	if _, err := r.db.NamedExecContext(ctx, insertCalendarEvent, event); err != nil {
		return fmt.Errorf("create calendar event: %w", err)
	}
	return nil
}

// CreateBatch persists every event in one transaction; either all rows are
// stored or none are.
func (r *CalendarRepository) CreateBatch(ctx context.Context, events []models.CalendarEvent) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin calendar import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for i := range events {
		prepareEvent(&events[i], now)
		if _, err = tx.NamedExecContext(ctx, insertCalendarEvent, &events[i]); err != nil {
			return fmt.Errorf("import calendar event %d: %w", i+1, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit calendar import: %w", err)
	}
	return nil
}

func prepareEvent(event *models.CalendarEvent, now time.Time) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
}

// ListFrom returns events dated on or after from, earliest first.
func (r *CalendarRepository) ListFrom(ctx context.Context, from time.Time) ([]models.CalendarEvent, error) {
	const query = `SELECT id, event_date, name, description, target_classes, attachment_path, created_by, created_at
FROM calendar_events WHERE event_date >= $1 ORDER BY event_date ASC, created_at ASC`
	var events []models.CalendarEvent
	if err := r.db.SelectContext(ctx, &events, query, from); err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}
	return events, nil
}
