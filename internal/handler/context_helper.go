package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contact-book-api/internal/middleware"
	"github.com/noah-isme/contact-book-api/internal/models"
	appErrors "github.com/noah-isme/contact-book-api/pkg/errors"
	"github.com/noah-isme/contact-book-api/pkg/response"
)

// currentSession writes 401 and returns false when no session is attached.
func currentSession(c *gin.Context) (*models.Session, bool) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return session, true
}

func requestMeta(c *gin.Context) models.LoginRequest {
	return models.LoginRequest{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

// bindJSON writes 400 and returns false when the body is not valid JSON for dest.
func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}
