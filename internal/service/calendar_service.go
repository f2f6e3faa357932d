package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/noah-isme/contact-book-api/internal/models"
	appErrors "github.com/noah-isme/contact-book-api/pkg/errors"
	"github.com/noah-isme/contact-book-api/pkg/validation"
)

const maxImportedEvents = 500

type calendarStore interface {
	Create(ctx context.Context, event *models.CalendarEvent) error
	CreateBatch(ctx context.Context, events []models.CalendarEvent) error
	ListFrom(ctx context.Context, from time.Time) ([]models.CalendarEvent, error)
}

// CalendarService manages the class-filtered school calendar.
type CalendarService struct {
	repo      calendarStore
	links     attachmentLinker
	guard     *AccessGuard
	validator *validation.Validator
	logger    *zap.Logger
	now       func() time.Time
}

// NewCalendarService constructs a CalendarService.
func NewCalendarService(repo calendarStore, links attachmentLinker, guard *AccessGuard, validate *validation.Validator, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	return &CalendarService{repo: repo, links: links, guard: guard, validator: validate, logger: logger, now: time.Now}
}

// Upcoming lists visible events dated on or after from, earliest first.
// A zero from means today.
func (s *CalendarService) Upcoming(ctx context.Context, session *models.Session, from time.Time) ([]models.CalendarEvent, error) {
	if from.IsZero() {
		from = today(s.now())
	}
	events, err := s.repo.ListFrom(ctx, from)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to load calendar")
	}
	visible := VisibleEvents(events, session.Audience)
	for i := range visible {
		visible[i] = s.present(visible[i])
	}
	return visible, nil
}

// Create adds an event. Every target must be an every-class tag or one of the
// teacher's reachable classes.
func (s *CalendarService) Create(ctx context.Context, session *models.Session, req models.CreateEventRequest) (*models.CalendarEvent, error) {
	if err := s.guard.RequireTeacher("create_event", session); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, s.validator.Message(err, "invalid event payload"))
	}
	if s.links != nil {
		if err := s.links.ValidatePath(req.AttachmentPath); err != nil {
			return nil, err
		}
	}
	date, err := time.Parse(dateLayout, req.EventDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event_date must be YYYY-MM-DD")
	}

	event := &models.CalendarEvent{
		EventDate:      date,
		Name:           strings.TrimSpace(req.Name),
		Description:    strings.TrimSpace(req.Description),
		AttachmentPath: req.AttachmentPath,
		CreatedBy:      session.Identity.Email,
	}
	if err := s.create(ctx, session, event, req.TargetClasses); err != nil {
		return nil, err
	}
	out := s.present(*event)
	return &out, nil
}

// ImportICS creates one event per VEVENT in an iCalendar file, all addressed
// to the same targets.
func (s *CalendarService) ImportICS(ctx context.Context, session *models.Session, r io.Reader, targets []string) ([]models.CalendarEvent, error) {
	if err := s.guard.RequireTeacher("import_events", session); err != nil {
		return nil, err
	}
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "file is not a valid iCalendar document")
	}
	vevents := cal.Events()
	if len(vevents) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "calendar contains no events")
	}
	if len(vevents) > maxImportedEvents {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("calendar contains more than %d events", maxImportedEvents))
	}

	targetClasses, err := s.resolveTargets(session, targets)
	if err != nil {
		return nil, err
	}

	events := make([]models.CalendarEvent, 0, len(vevents))
	for i, vevent := range vevents {
		event, err := eventFromICS(vevent)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("event %d: %v", i+1, err))
		}
		event.CreatedBy = session.Identity.Email
		event.TargetClasses = targetClasses
		events = append(events, event)
	}

	if err := s.repo.CreateBatch(ctx, events); err != nil {
		return nil, appErrors.Unavailable(err, "failed to save imported events")
	}
	out := make([]models.CalendarEvent, 0, len(events))
	for _, event := range events {
		out = append(out, s.present(event))
	}
	s.logger.Info("calendar imported", zap.Int("events", len(out)), zap.String("email", session.Identity.Email))
	return out, nil
}

// ExportICS renders the viewer's upcoming events as an RFC 5545 feed.
func (s *CalendarService) ExportICS(ctx context.Context, session *models.Session) ([]byte, error) {
	events, err := s.Upcoming(ctx, session, time.Time{})
	if err != nil {
		return nil, err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//contact-book-api//calendar//JA")
	cal.SetXWRCalName("School calendar")

	stamp := s.now().UTC()
	for _, e := range events {
		vevent := cal.AddEvent(e.ID + "@contact-book")
		vevent.SetDtStampTime(stamp)
		vevent.SetCreatedTime(e.CreatedAt)
		vevent.SetAllDayStartAt(e.EventDate)
		vevent.SetAllDayEndAt(e.EventDate.AddDate(0, 0, 1))
		vevent.SetSummary(e.Name)
		if e.Description != "" {
			vevent.SetDescription(e.Description)
		}
		if e.AttachmentURL != "" {
			vevent.SetURL(e.AttachmentURL)
		}
	}
	return []byte(cal.Serialize()), nil
}

func (s *CalendarService) create(ctx context.Context, session *models.Session, event *models.CalendarEvent, targets []string) error {
	targetClasses, err := s.resolveTargets(session, targets)
	if err != nil {
		return err
	}
	event.TargetClasses = targetClasses

	if err := s.repo.Create(ctx, event); err != nil {
		return appErrors.Unavailable(err, "failed to save event")
	}
	return nil
}

// resolveTargets joins the target tags, refusing any class the teacher cannot reach.
func (s *CalendarService) resolveTargets(session *models.Session, targets []string) (string, error) {
	cleaned := make([]string, 0, len(targets))
	for _, raw := range targets {
		for _, tag := range models.ParseClassTags(raw) {
			if !models.IsAllClassTag(tag) && !session.Audience.ReachableClasses.Has(tag) {
				return "", s.guard.Deny("create_event", session)
			}
			cleaned = append(cleaned, tag)
		}
	}
	return models.JoinClassTags(cleaned), nil
}

func (s *CalendarService) present(event models.CalendarEvent) models.CalendarEvent {
	if s.links != nil {
		event.AttachmentURL = s.links.SignedURL(event.AttachmentPath)
	}
	return event
}

func eventFromICS(vevent *ics.VEvent) (models.CalendarEvent, error) {
	summary := vevent.GetProperty(ics.ComponentPropertySummary)
	if summary == nil || strings.TrimSpace(summary.Value) == "" {
		return models.CalendarEvent{}, fmt.Errorf("missing SUMMARY")
	}
	start := vevent.GetProperty(ics.ComponentPropertyDtStart)
	if start == nil {
		return models.CalendarEvent{}, fmt.Errorf("missing DTSTART")
	}
	date, err := parseICSDate(start.Value)
	if err != nil {
		return models.CalendarEvent{}, err
	}
	event := models.CalendarEvent{EventDate: date, Name: strings.TrimSpace(summary.Value)}
	if desc := vevent.GetProperty(ics.ComponentPropertyDescription); desc != nil {
		event.Description = strings.TrimSpace(desc.Value)
	}
	return event, nil
}

// parseICSDate keeps only the calendar date of a DTSTART value.
func parseICSDate(value string) (time.Time, error) {
	for _, layout := range []string{"20060102T150405Z", "20060102T150405", "20060102"} {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse DTSTART %q", value)
}

func today(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
