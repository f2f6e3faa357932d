package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/contact-book-api/internal/models"
	appErrors "github.com/noah-isme/contact-book-api/pkg/errors"
	"github.com/noah-isme/contact-book-api/pkg/validation"
)

const dateLayout = "2006-01-02"

type contactStore interface {
	Append(ctx context.Context, msg *models.ContactMessage) (string, error)
	FindByID(ctx context.Context, id string) (*models.ContactMessage, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.ContactMessage, error)
	ListByStudents(ctx context.Context, studentIDs []string) ([]models.ContactMessage, error)
	ListBroadcasts(ctx context.Context) ([]models.ContactMessage, error)
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
}

type attachmentLinker interface {
	SignedURL(relPath string) string
	ValidatePath(relPath string) error
}

// ContactService runs the contact book: teacher messages, broadcasts, parent
// replies and read tracking, each gated by the viewer's audience.
type ContactService struct {
	store     contactStore
	cache     *CacheService
	ttl       time.Duration
	links     attachmentLinker
	guard     *AccessGuard
	validator *validation.Validator
	logger    *zap.Logger
	now       func() time.Time
}

// NewContactService constructs a ContactService.
func NewContactService(store contactStore, cache *CacheService, ttl time.Duration, links attachmentLinker, guard *AccessGuard, validate *validation.Validator, logger *zap.Logger) *ContactService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	return &ContactService{store: store, cache: cache, ttl: ttl, links: links, guard: guard, validator: validate, logger: logger, now: time.Now}
}

// SendIndividual appends a teacher message to a reachable student's log.
func (s *ContactService) SendIndividual(ctx context.Context, session *models.Session, req models.SendIndividualRequest) (*models.ContactMessage, error) {
	if err := s.guard.RequireTeacher("send_individual", session); err != nil {
		return nil, err
	}
	if err := s.validate(req, "invalid message payload"); err != nil {
		return nil, err
	}
	if err := s.guard.RequireStudent("send_individual", session, req.StudentID); err != nil {
		return nil, err
	}
	if err := s.checkAttachment(req.AttachmentPath); err != nil {
		return nil, err
	}

	studentID := req.StudentID
	unread := models.ReadStateUnread
	msg := &models.ContactMessage{
		StudentID:      &studentID,
		ContactDate:    s.contactDate(req.Date),
		SenderName:     session.Identity.DisplayName,
		Message:        strings.TrimSpace(req.Message),
		ItemsNotice:    strings.TrimSpace(req.ItemsNotice),
		Remarks:        strings.TrimSpace(req.Remarks),
		ReadState:      &unread,
		AttachmentPath: req.AttachmentPath,
	}
	if _, err := s.store.Append(ctx, msg); err != nil {
		return nil, appErrors.Unavailable(err, "failed to save message")
	}

	s.cache.Invalidate(ctx, studentContactKey(studentID))
	s.cache.InvalidatePattern(ctx, cacheKeyDashboards)
	s.logger.Info("individual message sent", zap.String("message_id", msg.ID), zap.String("student_id", studentID), zap.String("email", session.Identity.Email))

	out := s.present(*msg, session)
	return &out, nil
}

// SendBroadcast appends a teacher message to the shared broadcast log.
func (s *ContactService) SendBroadcast(ctx context.Context, session *models.Session, req models.SendBroadcastRequest) (*models.ContactMessage, error) {
	if err := s.guard.RequireTeacher("send_broadcast", session); err != nil {
		return nil, err
	}
	if err := s.validate(req, "invalid broadcast payload"); err != nil {
		return nil, err
	}
	if err := s.checkAttachment(req.AttachmentPath); err != nil {
		return nil, err
	}

	msg := &models.ContactMessage{
		ContactDate:    s.contactDate(req.Date),
		SenderName:     session.Identity.DisplayName,
		Message:        strings.TrimSpace(req.Message),
		ItemsNotice:    strings.TrimSpace(req.ItemsNotice),
		AttachmentPath: req.AttachmentPath,
	}
	if _, err := s.store.Append(ctx, msg); err != nil {
		return nil, appErrors.Unavailable(err, "failed to save broadcast")
	}

	s.cache.Invalidate(ctx, cacheKeyBroadcasts)
	s.cache.InvalidatePattern(ctx, cacheKeyDashboards)
	s.logger.Info("broadcast sent", zap.String("message_id", msg.ID), zap.String("email", session.Identity.Email))

	out := s.present(*msg, session)
	return &out, nil
}

// List returns the viewer's visible messages newest first. The keyword filter
// runs after redaction so hidden fields never match.
func (s *ContactService) List(ctx context.Context, session *models.Session, filter models.ContactFilter) ([]models.ContactMessage, error) {
	if filter.Kind == "" {
		filter.Kind = models.ContactKindAll
	}
	switch filter.Kind {
	case models.ContactKindAll, models.ContactKindBroadcast, models.ContactKindIndividual:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "kind must be one of all, broadcast, individual")
	}
	if filter.ReadState != "" && !filter.ReadState.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "read_state must be one of unread, read")
	}

	studentIDs := session.Audience.ReachableStudents.Sorted()
	if filter.StudentID != "" {
		if err := s.guard.RequireStudent("list_contacts", session, filter.StudentID); err != nil {
			return nil, err
		}
		studentIDs = []string{filter.StudentID}
	}

	var msgs []models.ContactMessage
	if filter.Kind != models.ContactKindIndividual {
		broadcasts, err := s.broadcasts(ctx)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, broadcasts...)
	}
	if filter.Kind != models.ContactKindBroadcast {
		individual, err := s.studentLogs(ctx, studentIDs)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, individual...)
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]models.ContactMessage, 0, len(msgs))
	for _, msg := range VisibleMessages(msgs, session) {
		if filter.ReadState != "" && !msg.IsBroadcast() && (msg.ReadState == nil || *msg.ReadState != filter.ReadState) {
			continue
		}
		if query != "" && !matchesQuery(msg, query) {
			continue
		}
		out = append(out, s.present(msg, session))
	}
	sortNewestFirst(out)
	return out, nil
}

// Get returns one visible message. Hidden and missing records both fail with Forbidden.
func (s *ContactService) Get(ctx context.Context, session *models.Session, id string) (*models.ContactMessage, error) {
	msg, err := s.authorized(ctx, session, "get_contact", id)
	if err != nil {
		return nil, err
	}
	out := s.present(*msg, session)
	return &out, nil
}

// StudentLog returns a reachable student's individual messages newest first.
func (s *ContactService) StudentLog(ctx context.Context, session *models.Session, studentID string) ([]models.ContactMessage, error) {
	if err := s.guard.RequireStudent("student_log", session, studentID); err != nil {
		return nil, err
	}
	msgs, err := s.studentLogs(ctx, []string{studentID})
	if err != nil {
		return nil, err
	}
	return VisibleMessages(msgs, session), nil
}

// Reply stores the parent's reply. A second reply overwrites the first.
func (s *ContactService) Reply(ctx context.Context, session *models.Session, id string, req models.ReplyRequest) (*models.ContactMessage, error) {
	if err := s.guard.RequireParent("reply", session); err != nil {
		return nil, err
	}
	if err := s.validate(req, "invalid reply payload"); err != nil {
		return nil, err
	}
	if err := s.checkAttachment(req.AttachmentPath); err != nil {
		return nil, err
	}
	msg, err := s.authorized(ctx, session, "reply", id)
	if err != nil {
		return nil, err
	}
	if msg.IsBroadcast() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "broadcast messages cannot be replied to")
	}

	reply := strings.TrimSpace(req.Reply)
	fields := map[string]interface{}{models.FieldHomeReply: reply}
	if req.AttachmentPath != "" {
		fields[models.FieldReplyAttachmentPath] = req.AttachmentPath
		msg.ReplyAttachmentPath = req.AttachmentPath
	}
	if err := s.update(ctx, msg, fields); err != nil {
		return nil, err
	}
	msg.HomeReply = &reply

	s.logger.Info("reply posted", zap.String("message_id", id), zap.String("email", session.Identity.Email))
	out := s.present(*msg, session)
	return &out, nil
}

// SetReadState marks an individual message read or unread.
func (s *ContactService) SetReadState(ctx context.Context, session *models.Session, id string, req models.ReadStateRequest) (*models.ContactMessage, error) {
	if err := s.validate(req, "invalid read state payload"); err != nil {
		return nil, err
	}
	msg, err := s.authorized(ctx, session, "set_read_state", id)
	if err != nil {
		return nil, err
	}
	if msg.IsBroadcast() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "broadcast messages have no read state")
	}

	state := req.ReadState
	if err := s.update(ctx, msg, map[string]interface{}{models.FieldReadState: state}); err != nil {
		return nil, err
	}
	msg.ReadState = &state

	out := s.present(*msg, session)
	return &out, nil
}

// PendingReply returns the most recent message the parent has not answered, or nil.
func (s *ContactService) PendingReply(ctx context.Context, session *models.Session) (*models.ContactMessage, error) {
	if err := s.guard.RequireParent("pending_reply", session); err != nil {
		return nil, err
	}
	msgs, err := s.StudentLog(ctx, session, session.Identity.LinkedStudentID)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(msgs)
	for _, msg := range msgs {
		if !msg.Replied() {
			out := s.present(msg, session)
			return &out, nil
		}
	}
	return nil, nil
}

func (s *ContactService) authorized(ctx context.Context, session *models.Session, operation, id string) (*models.ContactMessage, error) {
	msg, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.guard.Deny(operation, session)
		}
		return nil, appErrors.Unavailable(err, "failed to load message")
	}
	if !MessageVisible(*msg, session.Audience) {
		return nil, s.guard.Deny(operation, session)
	}
	return msg, nil
}

func (s *ContactService) update(ctx context.Context, msg *models.ContactMessage, fields map[string]interface{}) error {
	if err := s.store.UpdateFields(ctx, msg.ID, fields); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrRecordNotFound
		}
		return appErrors.Unavailable(err, "failed to update message")
	}
	if msg.StudentID != nil {
		s.cache.Invalidate(ctx, studentContactKey(*msg.StudentID))
	}
	s.cache.InvalidatePattern(ctx, cacheKeyDashboards)
	return nil
}

func (s *ContactService) broadcasts(ctx context.Context) ([]models.ContactMessage, error) {
	var msgs []models.ContactMessage
	if s.cache.Get(ctx, cacheKeyBroadcasts, &msgs) {
		return msgs, nil
	}
	msgs, err := s.store.ListBroadcasts(ctx)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to load broadcasts")
	}
	s.cache.Set(ctx, cacheKeyBroadcasts, msgs, s.ttl)
	return msgs, nil
}

// studentLogs serves each student's log from cache and loads the misses in one query.
func (s *ContactService) studentLogs(ctx context.Context, studentIDs []string) ([]models.ContactMessage, error) {
	var out []models.ContactMessage
	misses := make([]string, 0, len(studentIDs))
	for _, id := range studentIDs {
		var cached []models.ContactMessage
		if s.cache.Get(ctx, studentContactKey(id), &cached) {
			out = append(out, cached...)
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return out, nil
	}

	var loaded []models.ContactMessage
	var err error
	if len(misses) == 1 {
		loaded, err = s.store.ListByStudent(ctx, misses[0])
	} else {
		loaded, err = s.store.ListByStudents(ctx, misses)
	}
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to load contact log")
	}

	if s.cache.Enabled() {
		grouped := make(map[string][]models.ContactMessage, len(misses))
		for _, msg := range loaded {
			if msg.StudentID != nil {
				grouped[*msg.StudentID] = append(grouped[*msg.StudentID], msg)
			}
		}
		for _, id := range misses {
			s.cache.Set(ctx, studentContactKey(id), grouped[id], s.ttl)
		}
	}
	return append(out, loaded...), nil
}

func (s *ContactService) present(msg models.ContactMessage, session *models.Session) models.ContactMessage {
	msg = RedactMessage(msg, session.Identity.Role)
	if s.links != nil {
		msg.AttachmentURL = s.links.SignedURL(msg.AttachmentPath)
		msg.ReplyAttachmentURL = s.links.SignedURL(msg.ReplyAttachmentPath)
	}
	return msg
}

func (s *ContactService) validate(req interface{}, fallback string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, s.validator.Message(err, fallback))
	}
	return nil
}

func (s *ContactService) checkAttachment(relPath string) error {
	if s.links == nil {
		return nil
	}
	return s.links.ValidatePath(relPath)
}

// contactDate parses an optional YYYY-MM-DD date, defaulting to today.
func (s *ContactService) contactDate(raw string) time.Time {
	if raw != "" {
		if d, err := time.Parse(dateLayout, raw); err == nil {
			return d
		}
	}
	return today(s.now())
}

func matchesQuery(msg models.ContactMessage, query string) bool {
	fields := []string{msg.SenderName, msg.Message, msg.ItemsNotice, msg.Remarks}
	if msg.HomeReply != nil {
		fields = append(fields, *msg.HomeReply)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

func sortNewestFirst(msgs []models.ContactMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID > msgs[j].ID
		}
		return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
	})
}
