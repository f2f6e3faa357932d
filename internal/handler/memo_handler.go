package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contact-book-api/internal/models"
	"github.com/noah-isme/contact-book-api/pkg/response"
)

type memoService interface {
	List(ctx context.Context, session *models.Session) ([]models.SupportMemo, error)
	Get(ctx context.Context, session *models.Session, studentID string) (*models.SupportMemo, error)
	Save(ctx context.Context, session *models.Session, studentID string, req models.SaveMemoRequest) (*models.SupportMemo, error)
}

// MemoHandler exposes teacher-only support memos.
type MemoHandler struct {
	service memoService
}

// NewMemoHandler constructs a MemoHandler.
func NewMemoHandler(svc memoService) *MemoHandler {
	return &MemoHandler{service: svc}
}

// List godoc
// @Summary Support memos of reachable students
// @Tags Memos
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /memos [get]
func (h *MemoHandler) List(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	memos, err := h.service.List(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, memos, len(memos))
}

// Get godoc
// @Summary Support memo of one student
// @Tags Memos
// @Produce json
// @Param student_id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /memos/{student_id} [get]
func (h *MemoHandler) Get(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	memo, err := h.service.Get(c.Request.Context(), session, c.Param("student_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, memo, nil)
}

// Save godoc
// @Summary Create or replace a support memo
// @Tags Memos
// @Accept json
// @Produce json
// @Param student_id path string true "Student ID"
// @Param payload body models.SaveMemoRequest true "Memo"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /memos/{student_id} [put]
func (h *MemoHandler) Save(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	var req models.SaveMemoRequest
	if !bindJSON(c, &req, "invalid memo payload") {
		return
	}
	memo, err := h.service.Save(c.Request.Context(), session, c.Param("student_id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, memo, nil)
}
