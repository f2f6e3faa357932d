package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/contact-book-api/internal/models"
	appErrors "github.com/noah-isme/contact-book-api/pkg/errors"
	"github.com/noah-isme/contact-book-api/pkg/logger"
)

type authenticatorStub struct {
	sessions map[string]*models.Session
}

func (a authenticatorStub) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	if session, ok := a.sessions[token]; ok {
		return session, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func testAuthenticator() authenticatorStub {
	return authenticatorStub{sessions: map[string]*models.Session{
		"teacher-token": {ID: "s1", Identity: models.Identity{Email: "tanaka@school.example", Role: models.RoleTeacher}},
		"parent-token":  {ID: "s2", Identity: models.Identity{Email: "aoki@home.example", Role: models.RoleParent}},
	}}
}

func perform(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(recorder, req)
	return recorder
}

func errorCode(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body.Error.Code
}

func TestJWTStoresSessionAndActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWT(testAuthenticator()))
	router.GET("/me", func(c *gin.Context) {
		session, ok := SessionFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, session.Identity.Email+"|"+c.GetString(logger.ActorKey))
	})

	recorder := perform(router, http.MethodGet, "/me", "teacher-token")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "tanaka@school.example|tanaka@school.example", recorder.Body.String())
}

func TestJWTRejectsMissingAndInvalidTokens(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWT(testAuthenticator()))
	router.GET("/me", func(c *gin.Context) { c.Status(http.StatusOK) })

	recorder := perform(router, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, recorder))

	recorder = perform(router, http.MethodGet, "/me", "forged")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Basic abc")
	router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWT(testAuthenticator()))
	router.POST("/broadcast", RequireRoles(models.RoleTeacher), func(c *gin.Context) { c.Status(http.StatusCreated) })

	assert.Equal(t, http.StatusCreated, perform(router, http.MethodPost, "/broadcast", "teacher-token").Code)

	recorder := perform(router, http.MethodPost, "/broadcast", "parent-token")
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, recorder))
}

func TestRequireRolesWithoutSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/x", RequireRoles(models.RoleTeacher), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, perform(router, http.MethodGet, "/x", "").Code)
}

func TestAuditRecordsSuccessfulWrites(t *testing.T) {
	gin.SetMode(gin.TestMode)
	audit := &auditStub{}
	router := gin.New()
	router.Use(JWT(testAuthenticator()))
	router.PUT("/contacts/:id/read-state", Audit(audit, nil, models.AuditActionUpdate, "contact_message"), func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/fail/:id", Audit(audit, nil, models.AuditActionCreate, "contact_message"), func(c *gin.Context) { c.Status(http.StatusForbidden) })

	perform(router, http.MethodPut, "/contacts/m-1/read-state", "parent-token")
	perform(router, http.MethodPost, "/fail/m-2", "parent-token")

	require.Len(t, audit.logs, 1)
	entry := audit.logs[0]
	assert.Equal(t, models.AuditActionUpdate, entry.Action)
	assert.Equal(t, "aoki@home.example", *entry.Email)
	assert.Equal(t, "m-1", *entry.ResourceID)
	assert.Contains(t, string(entry.NewValues), `"status":200`)
}
