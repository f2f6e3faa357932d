package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/contact-book-api/internal/models"
	appErrors "github.com/noah-isme/contact-book-api/pkg/errors"
)

// SessionStore persists sessions between requests.
type SessionStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type identityResolver interface {
	Resolve(ctx context.Context, email, studentID string) (*models.Identity, models.Roster, error)
}

func sessionKey(id string) string        { return "session:" + id }
func revokedSessionKey(id string) string { return "session:revoked:" + id }

// SessionService creates sessions at sign-in and reloads them per request.
// A session missing from the store is rebuilt from the directory, which is
// the same work sign-in does.
type SessionService struct {
	directory identityResolver
	store     SessionStore
	ttl       time.Duration
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(directory identityResolver, store SessionStore, ttl time.Duration, metrics *MetricsService, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionService{directory: directory, store: store, ttl: ttl, metrics: metrics, logger: logger, now: time.Now}
}

// Create resolves the email and stores a new session.
func (s *SessionService) Create(ctx context.Context, email, studentID string) (*models.Session, error) {
	issuedAt := s.now().UTC()
	return s.build(ctx, uuid.NewString(), email, studentID, issuedAt, issuedAt.Add(s.ttl))
}

// Load returns the session referenced by the token claims.
func (s *SessionService) Load(ctx context.Context, claims *models.JWTClaims) (*models.Session, error) {
	if claims == nil || claims.SessionID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session missing from token")
	}

	var revoked bool
	err := s.store.Get(ctx, revokedSessionKey(claims.SessionID), &revoked)
	switch {
	case err == nil && revoked:
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session has ended")
	case err != nil && !errors.Is(err, appErrors.ErrCacheMiss):
		s.logger.Warn("session revocation lookup failed", zap.String("session_id", claims.SessionID), zap.Error(err))
	}

	var session models.Session
	err = s.store.Get(ctx, sessionKey(claims.SessionID), &session)
	switch {
	case err == nil && session.Identity.Email == claims.Email:
		s.metrics.RecordSessionResolve("store")
		return &session, nil
	case err != nil && !errors.Is(err, appErrors.ErrCacheMiss):
		s.logger.Warn("session store read failed", zap.String("session_id", claims.SessionID), zap.Error(err))
	}

	issuedAt := s.now().UTC()
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	expiresAt := issuedAt.Add(s.ttl)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	s.metrics.RecordSessionResolve("directory")
	return s.build(ctx, claims.SessionID, claims.Email, claims.StudentID, issuedAt, expiresAt)
}

// Revoke ends a session before its token expires.
func (s *SessionService) Revoke(ctx context.Context, session *models.Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.store.Set(ctx, revokedSessionKey(session.ID), true, ttl); err != nil {
		return appErrors.Unavailable(err, "failed to end session")
	}
	if err := s.store.Delete(ctx, sessionKey(session.ID)); err != nil {
		s.logger.Warn("session delete failed", zap.String("session_id", session.ID), zap.Error(err))
	}
	return nil
}

func (s *SessionService) build(ctx context.Context, id, email, studentID string, issuedAt, expiresAt time.Time) (*models.Session, error) {
	identity, roster, err := s.directory.Resolve(ctx, email, studentID)
	if err != nil {
		return nil, err
	}
	session := &models.Session{
		ID:        id,
		Identity:  *identity,
		Audience:  AudienceFor(*identity, roster.Students),
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}

	if ttl := expiresAt.Sub(s.now()); ttl > 0 {
		if err := s.store.Set(ctx, sessionKey(id), session, ttl); err != nil {
			s.logger.Warn("session store write failed", zap.String("session_id", id), zap.Error(err))
		}
	}
	return session, nil
}
