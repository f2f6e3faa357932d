package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/contact-book-api/internal/models"
	appErrors "github.com/noah-isme/contact-book-api/pkg/errors"
)

const (
	teacher3A  = "tanaka@school.example"
	teacher3B  = "sato@school.example"
	teacherAll = "suzuki@school.example"
	parentTwo  = "aoki@home.example"
	parent3B   = "ito@home.example"
)

func fixtureRoster() models.Roster {
	return models.Roster{
		Teachers: []models.Teacher{
			{Email: teacher3A, Name: "田中先生", ClassList: "3-A"},
			{Email: teacher3B, Name: "佐藤先生", ClassList: "3-B"},
			{Email: teacherAll, Name: "鈴木先生", ClassList: ""},
		},
		Students: []models.Student{
			{StudentID: "S003", Name: "青木めい", ClassTag: "3-A", ParentEmail: parentTwo},
			{StudentID: "S001", Name: "青木あおい", ClassTag: "3-A", ParentEmail: parentTwo},
			{StudentID: "S002", Name: "伊藤れん", ClassTag: "3-B", ParentEmail: parent3B},
			{StudentID: "S004", Name: "加藤ゆい", ClassTag: "3-C", ParentEmail: "kato@home.example"},
		},
	}
}

func sessionFor(t *testing.T, email string) *models.Session {
	t.Helper()
	roster := fixtureRoster()
	identity, err := ResolveIdentity(roster, email, "")
	require.NoError(t, err)
	now := time.Now().UTC()
	return &models.Session{
		ID:        "sess-" + email,
		Identity:  *identity,
		Audience:  AudienceFor(*identity, roster.Students),
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func strPtr(s string) *string { return &s }

func statePtr(s models.ReadState) *models.ReadState { return &s }

// memoryCache is a JSON round-tripping CacheRepository and SessionStore.
type memoryCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	gets   int
	getErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.data {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.data, key)
		}
	}
	return nil
}

func (m *memoryCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

// contactStoreStub keeps messages in memory and counts list queries.
type contactStoreStub struct {
	mu        sync.Mutex
	msgs      map[string]models.ContactMessage
	seq       int
	listCalls int
	updates   int
	listErr   error
	updateErr error
	// clock stamps updated_at the way the repository does: only on a real change.
	clock time.Time
}

func newContactStoreStub(msgs ...models.ContactMessage) *contactStoreStub {
	s := &contactStoreStub{msgs: make(map[string]models.ContactMessage)}
	for _, msg := range msgs {
		s.msgs[msg.ID] = msg
	}
	return s
}

func (s *contactStoreStub) Append(ctx context.Context, msg *models.ContactMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("m-new-%03d", s.seq)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.msgs[msg.ID] = *msg
	return msg.ID, nil
}

func (s *contactStoreStub) FindByID(ctx context.Context, id string) (*models.ContactMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.msgs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &msg, nil
}

func (s *contactStoreStub) ListByStudent(ctx context.Context, studentID string) ([]models.ContactMessage, error) {
	return s.ListByStudents(ctx, []string{studentID})
}

func (s *contactStoreStub) ListByStudents(ctx context.Context, studentIDs []string) ([]models.ContactMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	wanted := models.NewStringSet(studentIDs...)
	var out []models.ContactMessage
	for _, msg := range s.msgs {
		if msg.StudentID != nil && wanted.Has(*msg.StudentID) {
			out = append(out, msg)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *contactStoreStub) ListBroadcasts(ctx context.Context) ([]models.ContactMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.ContactMessage
	for _, msg := range s.msgs {
		if msg.StudentID == nil {
			out = append(out, msg)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *contactStoreStub) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if s.updateErr != nil {
		return s.updateErr
	}
	msg, ok := s.msgs[id]
	if !ok {
		return sql.ErrNoRows
	}
	before := msg
	for key, value := range fields {
		switch key {
		case models.FieldHomeReply:
			reply := value.(string)
			msg.HomeReply = &reply
		case models.FieldReadState:
			state := value.(models.ReadState)
			msg.ReadState = &state
		case models.FieldReplyAttachmentPath:
			msg.ReplyAttachmentPath = value.(string)
		}
	}
	if mutableFieldsChanged(before, msg) {
		s.clock = s.clock.Add(time.Minute)
		msg.UpdatedAt = s.clock
	}
	s.msgs[id] = msg
	return nil
}

func mutableFieldsChanged(a, b models.ContactMessage) bool {
	return derefString(a.HomeReply) != derefString(b.HomeReply) ||
		(a.HomeReply == nil) != (b.HomeReply == nil) ||
		(a.ReadState == nil) != (b.ReadState == nil) ||
		(a.ReadState != nil && *a.ReadState != *b.ReadState) ||
		a.ReplyAttachmentPath != b.ReplyAttachmentPath
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func (s *contactStoreStub) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.msgs, id)
}

// fixtureMessages is a small mixed log: one broadcast and messages for S001, S002 and S003.
func fixtureMessages() []models.ContactMessage {
	base := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	return []models.ContactMessage{
		{ID: "m-001", CreatedAt: base, ContactDate: base, SenderName: "田中先生", Message: "運動会のお知らせ"},
		{ID: "m-002", StudentID: strPtr("S001"), CreatedAt: base.Add(time.Hour), ContactDate: base, SenderName: "田中先生", Message: "Swimming bag needed", Remarks: "watch the left knee", ReadState: statePtr(models.ReadStateUnread)},
		{ID: "m-003", StudentID: strPtr("S002"), CreatedAt: base.Add(2 * time.Hour), ContactDate: base, SenderName: "佐藤先生", Message: "Field trip form", ReadState: statePtr(models.ReadStateUnread)},
		{ID: "m-004", StudentID: strPtr("S001"), CreatedAt: base.Add(3 * time.Hour), ContactDate: base.AddDate(0, 1, 0), SenderName: "田中先生", Message: "Good week", HomeReply: strPtr("Thank you"), ReadState: statePtr(models.ReadStateRead)},
		{ID: "m-005", StudentID: strPtr("S003"), CreatedAt: base.Add(4 * time.Hour), ContactDate: base, SenderName: "田中先生", Message: "Lost mitten", ReadState: statePtr(models.ReadStateUnread)},
	}
}

func messageIDs(msgs []models.ContactMessage) []string {
	ids := make([]string, len(msgs))
	for i, msg := range msgs {
		ids[i] = msg.ID
	}
	return ids
}

// linkStub signs paths predictably.
type linkStub struct{}

func (linkStub) SignedURL(relPath string) string {
	if relPath == "" {
		return ""
	}
	return "/attachments/signed-" + strings.ReplaceAll(relPath, "/", "_")
}

func (linkStub) ValidatePath(relPath string) error {
	if relPath == "" || strings.HasPrefix(relPath, "2026/") {
		return nil
	}
	return appErrors.Clone(appErrors.ErrValidation, "attachment_path is not a stored attachment")
}

// counterTotal sums every series of a counter in the metrics registry.
func counterTotal(t *testing.T, metrics *MetricsService, name string) float64 {
	t.Helper()
	families, err := metrics.registry.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
