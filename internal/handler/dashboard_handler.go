package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contact-book-api/internal/models"
	"github.com/noah-isme/contact-book-api/pkg/response"
)

type dashboardService interface {
	Summary(ctx context.Context, session *models.Session) (*models.ContactStats, error)
}

// DashboardHandler exposes contact book statistics.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs a dashboard handler.
func NewDashboardHandler(svc dashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Summary godoc
// @Summary Contact book summary
// @Description Message counts for the teacher's reachable students
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	stats, err := h.service.Summary(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, map[string]interface{}{"generated_at": stats.GeneratedAt})
}
