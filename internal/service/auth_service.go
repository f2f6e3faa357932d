package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/contact-book-api/internal/models"
	appErrors "github.com/noah-isme/contact-book-api/pkg/errors"
	"github.com/noah-isme/contact-book-api/pkg/validation"
)

type authAccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	UpdateLastLogin(ctx context.Context, email string, ts time.Time) error
	UpdatePassword(ctx context.Context, email, passwordHash string, updatedAt time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type sessionManager interface {
	Create(ctx context.Context, email, studentID string) (*models.Session, error)
	Load(ctx context.Context, claims *models.JWTClaims) (*models.Session, error)
	Revoke(ctx context.Context, session *models.Session) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// AuthService checks local credentials and hands the verified email to the
// directory to open a session.
type AuthService struct {
	repo      authAccountRepository
	sessions  sessionManager
	guard     *AccessGuard
	validator *validation.Validator
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authAccountRepository, sessions sessionManager, guard *AccessGuard, validate *validation.Validator, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 12 * time.Hour
	}
	return &AuthService{repo: repo, sessions: sessions, guard: guard, validator: validate, logger: logger, config: config}
}

// Login authenticates an account, resolves its directory identity and issues a token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, s.validator.Message(err, "invalid login payload"))
	}
	email := normalizeEmail(req.Email)

	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, appErrors.Unavailable(err, "failed to fetch account")
	}

	if !account.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	session, err := s.sessions.Create(ctx, email, req.StudentID)
	if err != nil {
		s.logger.Info("sign-in rejected by directory", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	resp, err := s.issue(session)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateLastLogin(ctx, email, session.IssuedAt); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}
	s.audit(ctx, email, models.AuditActionLogin, session.Identity.LinkedStudentID, req.IP, req.UserAgent)

	return resp, nil
}

// SwitchStudent re-issues a parent session for another linked child.
func (s *AuthService) SwitchStudent(ctx context.Context, current *models.Session, req models.SwitchStudentRequest, meta models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.guard.RequireParent("switch_student", current); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, s.validator.Message(err, "invalid switch payload"))
	}

	session, err := s.sessions.Create(ctx, current.Identity.Email, req.StudentID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Revoke(ctx, current); err != nil {
		s.logger.Warn("failed to end previous session", zap.String("session_id", current.ID), zap.Error(err))
	}

	resp, err := s.issue(session)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, current.Identity.Email, models.AuditActionSwitchStudent, req.StudentID, meta.IP, meta.UserAgent)
	return resp, nil
}

// Logout ends the session.
func (s *AuthService) Logout(ctx context.Context, session *models.Session, meta models.LoginRequest) error {
	if err := s.sessions.Revoke(ctx, session); err != nil {
		return err
	}
	s.audit(ctx, session.Identity.Email, models.AuditActionLogout, "", meta.IP, meta.UserAgent)
	return nil
}

// ChangePassword rotates the password of the signed-in account.
func (s *AuthService) ChangePassword(ctx context.Context, session *models.Session, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, s.validator.Message(err, "invalid change password payload"))
	}

	email := session.Identity.Email
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return appErrors.Unavailable(err, "failed to load account")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.OldPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrInvalidCredentials, "old password does not match")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.repo.UpdatePassword(ctx, email, string(newHash), time.Now().UTC()); err != nil {
		return appErrors.Unavailable(err, "failed to update password")
	}

	s.audit(ctx, email, models.AuditActionPasswordChange, "", "", "")
	return nil
}

// Authenticate validates an access token and loads its session.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*models.Session, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return s.sessions.Load(ctx, claims)
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithIssuer(s.config.Issuer))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) issue(session *models.Session) (*models.LoginResponse, error) {
	claims := &models.JWTClaims{
		SessionID: session.ID,
		Email:     session.Identity.Email,
		Role:      session.Identity.Role,
		StudentID: session.Identity.LinkedStudentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   session.Identity.Email,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			NotBefore: jwt.NewNumericDate(session.IssuedAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	return &models.LoginResponse{
		AccessToken: signed,
		ExpiresIn:   int64(session.ExpiresAt.Sub(session.IssuedAt).Seconds()),
		IssuedAt:    session.IssuedAt,
		Session:     session.Info(),
	}, nil
}

func (s *AuthService) audit(ctx context.Context, email, action, resourceID, ip, userAgent string) {
	entry := &models.AuditLog{
		Email:     &email,
		Action:    action,
		Resource:  "auth",
		NewValues: []byte(`{"status":"success"}`),
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record auth audit log", zap.String("action", action), zap.Error(err))
	}
}
