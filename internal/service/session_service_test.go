package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/contact-book-api/internal/models"
	appErrors "github.com/noah-isme/contact-book-api/pkg/errors"
)

// rosterResolver resolves against a fixed roster and counts lookups.
type rosterResolver struct {
	roster models.Roster
	calls  int
}

func (r *rosterResolver) Resolve(ctx context.Context, email, studentID string) (*models.Identity, models.Roster, error) {
	r.calls++
	identity, err := ResolveIdentity(r.roster, email, studentID)
	if err != nil {
		return nil, models.Roster{}, err
	}
	return identity, r.roster, nil
}

func newSessionServiceForTest() (*SessionService, *rosterResolver, *memoryCache, *MetricsService) {
	resolver := &rosterResolver{roster: fixtureRoster()}
	store := newMemoryCache()
	metrics := NewMetricsService()
	return NewSessionService(resolver, store, time.Hour, metrics, nil), resolver, store, metrics
}

func claimsFor(session *models.Session) *models.JWTClaims {
	return &models.JWTClaims{
		SessionID: session.ID,
		Email:     session.Identity.Email,
		Role:      session.Identity.Role,
		StudentID: session.Identity.LinkedStudentID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
}

func TestSessionServiceCreateStoresSession(t *testing.T) {
	svc, _, store, _ := newSessionServiceForTest()

	session, err := svc.Create(context.Background(), parentTwo, "S003")
	require.NoError(t, err)

	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "S003", session.Identity.LinkedStudentID)
	assert.Equal(t, []string{"S003"}, session.Audience.ReachableStudents.Sorted())
	assert.WithinDuration(t, session.IssuedAt.Add(time.Hour), session.ExpiresAt, time.Second)
	assert.True(t, store.has(sessionKey(session.ID)))
}

func TestSessionServiceCreateUnregistered(t *testing.T) {
	svc, _, _, _ := newSessionServiceForTest()

	_, err := svc.Create(context.Background(), "nobody@example.com", "")
	assert.ErrorIs(t, err, appErrors.ErrUnregisteredIdentity)
}

func TestSessionServiceLoadFromStore(t *testing.T) {
	svc, resolver, _, metrics := newSessionServiceForTest()
	created, err := svc.Create(context.Background(), teacher3A, "")
	require.NoError(t, err)

	loaded, err := svc.Load(context.Background(), claimsFor(created))
	require.NoError(t, err)

	assert.Equal(t, 1, resolver.calls)
	assert.Equal(t, created.ID, loaded.ID)
	assert.Equal(t, created.Audience.ReachableStudents.Sorted(), loaded.Audience.ReachableStudents.Sorted())
	assert.Equal(t, 1.0, counterTotal(t, metrics, "contact_book_session_resolutions_total"))
}

func TestSessionServiceLoadRebuildsOnMiss(t *testing.T) {
	svc, resolver, store, _ := newSessionServiceForTest()
	created, err := svc.Create(context.Background(), parentTwo, "S003")
	require.NoError(t, err)
	require.NoError(t, store.Delete(context.Background(), sessionKey(created.ID)))

	loaded, err := svc.Load(context.Background(), claimsFor(created))
	require.NoError(t, err)

	assert.Equal(t, 2, resolver.calls)
	assert.Equal(t, created.ID, loaded.ID)
	assert.Equal(t, "S003", loaded.Identity.LinkedStudentID)
	assert.True(t, store.has(sessionKey(created.ID)))
}

func TestSessionServiceLoadRejectsRevoked(t *testing.T) {
	svc, _, store, _ := newSessionServiceForTest()
	created, err := svc.Create(context.Background(), teacher3B, "")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(context.Background(), created))
	assert.False(t, store.has(sessionKey(created.ID)))

	_, err = svc.Load(context.Background(), claimsFor(created))
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestSessionServiceLoadRequiresSessionID(t *testing.T) {
	svc, _, _, _ := newSessionServiceForTest()

	_, err := svc.Load(context.Background(), &models.JWTClaims{Email: teacher3A})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestSessionServiceLoadReflectsRosterChanges(t *testing.T) {
	svc, resolver, store, _ := newSessionServiceForTest()
	created, err := svc.Create(context.Background(), parent3B, "")
	require.NoError(t, err)

	resolver.roster.Students = resolver.roster.Students[:2]
	require.NoError(t, store.Delete(context.Background(), sessionKey(created.ID)))

	_, err = svc.Load(context.Background(), claimsFor(created))
	assert.ErrorIs(t, err, appErrors.ErrUnregisteredIdentity)
}

func TestSessionServiceLoadWarnsWhenRevocationLookupFails(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	resolver := &rosterResolver{roster: fixtureRoster()}
	store := newMemoryCache()
	svc := NewSessionService(resolver, store, time.Hour, NewMetricsService(), zap.New(core))

	created, err := svc.Create(context.Background(), teacher3A, "")
	require.NoError(t, err)
	store.getErr = errors.New("connection refused")

	loaded, err := svc.Load(context.Background(), claimsFor(created))
	require.NoError(t, err)
	assert.Equal(t, created.ID, loaded.ID)

	entries := logs.FilterMessage("session revocation lookup failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, created.ID, entries[0].ContextMap()["session_id"])
}
