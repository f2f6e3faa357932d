package service

import (
	"go.uber.org/zap"

	"github.com/noah-isme/contact-book-api/internal/models"
	appErrors "github.com/noah-isme/contact-book-api/pkg/errors"
)

// MessageVisible reports whether a message may be shown to the audience.
func MessageVisible(msg models.ContactMessage, audience models.Audience) bool {
	if msg.IsBroadcast() {
		return true
	}
	return audience.ReachableStudents.Has(*msg.StudentID)
}

// RedactMessage strips teacher-only fields for parent viewers.
func RedactMessage(msg models.ContactMessage, role models.Role) models.ContactMessage {
	if role != models.RoleTeacher {
		msg.Remarks = ""
	}
	return msg
}

// VisibleMessages keeps visible messages in their original order, redacted for the viewer.
func VisibleMessages(msgs []models.ContactMessage, session *models.Session) []models.ContactMessage {
	out := make([]models.ContactMessage, 0, len(msgs))
	for _, msg := range msgs {
		if MessageVisible(msg, session.Audience) {
			out = append(out, RedactMessage(msg, session.Identity.Role))
		}
	}
	return out
}

// EventVisible reports whether an event targets the audience. Events with no
// targets or an every-class target are visible to all.
func EventVisible(event models.CalendarEvent, audience models.Audience) bool {
	targets := event.Targets()
	if len(targets) == 0 {
		return true
	}
	for _, tag := range targets {
		if models.IsAllClassTag(tag) || audience.ReachableClasses.Has(tag) {
			return true
		}
	}
	return false
}

// VisibleEvents keeps events targeting the audience.
func VisibleEvents(events []models.CalendarEvent, audience models.Audience) []models.CalendarEvent {
	out := make([]models.CalendarEvent, 0, len(events))
	for _, event := range events {
		if EventVisible(event, audience) {
			out = append(out, event)
		}
	}
	return out
}

// MemoVisible reports whether a support memo may be shown. Parents never see memos.
func MemoVisible(memo models.SupportMemo, session *models.Session) bool {
	return session.Identity.IsTeacher() && session.Audience.ReachableStudents.Has(memo.StudentID)
}

// VisibleMemos keeps memos the viewer may read.
func VisibleMemos(memos []models.SupportMemo, session *models.Session) []models.SupportMemo {
	out := make([]models.SupportMemo, 0, len(memos))
	for _, memo := range memos {
		if MemoVisible(memo, session) {
			out = append(out, memo)
		}
	}
	return out
}

// AccessGuard turns failed visibility checks into Forbidden errors, logging
// and counting each denial without saying whether the record exists.
type AccessGuard struct {
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAccessGuard constructs an AccessGuard.
func NewAccessGuard(metrics *MetricsService, logger *zap.Logger) *AccessGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessGuard{metrics: metrics, logger: logger}
}

// Deny records a denial for the operation and returns Forbidden.
func (g *AccessGuard) Deny(operation string, session *models.Session) error {
	role := ""
	email := ""
	if session != nil {
		role = string(session.Identity.Role)
		email = session.Identity.Email
	}
	if g != nil {
		g.metrics.RecordAccessDenied(operation, role)
		g.logger.Info("access denied", zap.String("operation", operation), zap.String("role", role), zap.String("email", email))
	}
	return appErrors.ErrForbidden
}

// RequireTeacher fails with Forbidden unless the session belongs to a teacher.
func (g *AccessGuard) RequireTeacher(operation string, session *models.Session) error {
	if session == nil || !session.Identity.IsTeacher() {
		return g.Deny(operation, session)
	}
	return nil
}

// RequireParent fails with Forbidden unless the session belongs to a parent.
func (g *AccessGuard) RequireParent(operation string, session *models.Session) error {
	if session == nil || session.Identity.Role != models.RoleParent {
		return g.Deny(operation, session)
	}
	return nil
}

// RequireStudent fails with Forbidden unless the student is in the audience.
// Unknown students are indistinguishable from hidden ones.
func (g *AccessGuard) RequireStudent(operation string, session *models.Session, studentID string) error {
	if session == nil || !session.Audience.ReachableStudents.Has(studentID) {
		return g.Deny(operation, session)
	}
	return nil
}
