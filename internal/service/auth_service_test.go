package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/contact-book-api/internal/models"
	appErrors "github.com/noah-isme/contact-book-api/pkg/errors"
)

type mockAccountRepo struct {
	accounts         map[string]*models.Account
	findErr          error
	updatePassErr    error
	auditLogs        []*models.AuditLog
	lastLoginUpdated bool
}

func (m *mockAccountRepo) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	account, ok := m.accounts[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return account, nil
}

func (m *mockAccountRepo) UpdateLastLogin(ctx context.Context, email string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAccountRepo) UpdatePassword(ctx context.Context, email, passwordHash string, updatedAt time.Time) error {
	if m.updatePassErr != nil {
		return m.updatePassErr
	}
	m.accounts[email].PasswordHash = passwordHash
	return nil
}

func (m *mockAccountRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newAuthServiceForTest(t *testing.T) (*AuthService, *mockAccountRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &mockAccountRepo{accounts: map[string]*models.Account{
		teacher3A:            {Email: teacher3A, PasswordHash: string(hash), Active: true},
		parentTwo:            {Email: parentTwo, PasswordHash: string(hash), Active: true},
		"retired@school.jp":  {Email: "retired@school.jp", PasswordHash: string(hash), Active: false},
		"orphan@example.com": {Email: "orphan@example.com", PasswordHash: string(hash), Active: true},
	}}
	sessions, _, _, _ := newSessionServiceForTest()
	svc := NewAuthService(repo, sessions, NewAccessGuard(nil, nil), nil, nil, AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "contact-book-test",
	})
	return svc, repo
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	svc, repo := newAuthServiceForTest(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "Tanaka@School.Example", Password: "password123", IP: "127.0.0.1"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, models.RoleTeacher, resp.Session.Role)
	assert.Equal(t, []string{"3-A"}, resp.Session.ReachableClasses)
	assert.True(t, repo.lastLoginUpdated)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	svc, _ := newAuthServiceForTest(t)

	cases := []struct {
		name string
		req  models.LoginRequest
		want *appErrors.Error
	}{
		{name: "wrong password", req: models.LoginRequest{Email: teacher3A, Password: "nope"}, want: appErrors.ErrInvalidCredentials},
		{name: "unknown account", req: models.LoginRequest{Email: "ghost@example.com", Password: "password123"}, want: appErrors.ErrInvalidCredentials},
		{name: "inactive", req: models.LoginRequest{Email: "retired@school.jp", Password: "password123"}, want: appErrors.ErrInactiveAccount},
		{name: "not on roster", req: models.LoginRequest{Email: "orphan@example.com", Password: "password123"}, want: appErrors.ErrUnregisteredIdentity},
		{name: "not linked", req: models.LoginRequest{Email: parentTwo, Password: "password123", StudentID: "S002"}, want: appErrors.ErrNoLinkedStudent},
		{name: "missing email", req: models.LoginRequest{Password: "password123"}, want: appErrors.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAuthServiceLoginStoreFailure(t *testing.T) {
	svc, repo := newAuthServiceForTest(t)
	repo.findErr = errors.New("db down")

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: teacher3A, Password: "password123"})
	assert.ErrorIs(t, err, appErrors.ErrCollaboratorUnavailable)
}

func TestAuthServiceAuthenticateRoundTrip(t *testing.T) {
	svc, _ := newAuthServiceForTest(t)
	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: parentTwo, Password: "password123", StudentID: "S003"})
	require.NoError(t, err)

	session, err := svc.Authenticate(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "S003", session.Identity.LinkedStudentID)

	require.NoError(t, svc.Logout(context.Background(), session, models.LoginRequest{}))
	_, err = svc.Authenticate(context.Background(), resp.AccessToken)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceSwitchStudent(t *testing.T) {
	svc, repo := newAuthServiceForTest(t)
	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: parentTwo, Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "S001", resp.Session.StudentID)
	current, err := svc.Authenticate(context.Background(), resp.AccessToken)
	require.NoError(t, err)

	switched, err := svc.SwitchStudent(context.Background(), current, models.SwitchStudentRequest{StudentID: "S003"}, models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, "S003", switched.Session.StudentID)
	assert.Equal(t, models.AuditActionSwitchStudent, repo.auditLogs[len(repo.auditLogs)-1].Action)

	_, err = svc.Authenticate(context.Background(), resp.AccessToken)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = svc.SwitchStudent(context.Background(), sessionFor(t, teacher3A), models.SwitchStudentRequest{StudentID: "S003"}, models.LoginRequest{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestAuthServiceChangePassword(t *testing.T) {
	svc, repo := newAuthServiceForTest(t)
	session := sessionFor(t, teacher3A)

	err := svc.ChangePassword(context.Background(), session, models.ChangePasswordRequest{OldPassword: "wrong-password", NewPassword: "newpassword1"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	err = svc.ChangePassword(context.Background(), session, models.ChangePasswordRequest{OldPassword: "password123", NewPassword: "short"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	require.NoError(t, svc.ChangePassword(context.Background(), session, models.ChangePasswordRequest{OldPassword: "password123", NewPassword: "newpassword1"}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.accounts[teacher3A].PasswordHash), []byte("newpassword1")))
}

func TestValidateToken(t *testing.T) {
	svc, _ := newAuthServiceForTest(t)
	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: teacher3A, Password: "password123"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, teacher3A, claims.Email)
	assert.Equal(t, models.RoleTeacher, claims.Role)
	assert.NotEmpty(t, claims.SessionID)

	other := NewAuthService(nil, nil, nil, nil, nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "someone-else"})
	_, err = other.ValidateToken(resp.AccessToken)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
