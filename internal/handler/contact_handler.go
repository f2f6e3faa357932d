package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contact-book-api/internal/models"
	"github.com/noah-isme/contact-book-api/internal/service"
	"github.com/noah-isme/contact-book-api/pkg/response"
)

type contactService interface {
	SendIndividual(ctx context.Context, session *models.Session, req models.SendIndividualRequest) (*models.ContactMessage, error)
	SendBroadcast(ctx context.Context, session *models.Session, req models.SendBroadcastRequest) (*models.ContactMessage, error)
	List(ctx context.Context, session *models.Session, filter models.ContactFilter) ([]models.ContactMessage, error)
	Get(ctx context.Context, session *models.Session, id string) (*models.ContactMessage, error)
	Reply(ctx context.Context, session *models.Session, id string, req models.ReplyRequest) (*models.ContactMessage, error)
	SetReadState(ctx context.Context, session *models.Session, id string, req models.ReadStateRequest) (*models.ContactMessage, error)
	PendingReply(ctx context.Context, session *models.Session) (*models.ContactMessage, error)
}

type exportService interface {
	ContactLog(ctx context.Context, session *models.Session, studentID, format string) (*service.ExportFile, error)
}

// ContactHandler exposes the contact book.
type ContactHandler struct {
	contacts contactService
	exports  exportService
}

// NewContactHandler constructs a ContactHandler.
func NewContactHandler(contacts contactService, exports exportService) *ContactHandler {
	return &ContactHandler{contacts: contacts, exports: exports}
}

// SendIndividual godoc
// @Summary Send a message to one student's family
// @Tags Contacts
// @Accept json
// @Produce json
// @Param payload body models.SendIndividualRequest true "Message"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /contacts/individual [post]
func (h *ContactHandler) SendIndividual(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	var req models.SendIndividualRequest
	if !bindJSON(c, &req, "invalid message payload") {
		return
	}

	msg, err := h.contacts.SendIndividual(c.Request.Context(), session, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

// SendBroadcast godoc
// @Summary Send a message to every family
// @Tags Contacts
// @Accept json
// @Produce json
// @Param payload body models.SendBroadcastRequest true "Broadcast"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /contacts/broadcast [post]
func (h *ContactHandler) SendBroadcast(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	var req models.SendBroadcastRequest
	if !bindJSON(c, &req, "invalid broadcast payload") {
		return
	}

	msg, err := h.contacts.SendBroadcast(c.Request.Context(), session, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

// List godoc
// @Summary List visible messages
// @Description Broadcasts and individual messages the viewer may see, newest first
// @Tags Contacts
// @Produce json
// @Param kind query string false "all, broadcast or individual"
// @Param read_state query string false "unread or read"
// @Param student_id query string false "Limit to one student"
// @Param q query string false "Keyword"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /contacts [get]
func (h *ContactHandler) List(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	filter := models.ContactFilter{
		Kind:      models.ContactKind(c.Query("kind")),
		ReadState: models.ReadState(c.Query("read_state")),
		StudentID: c.Query("student_id"),
		Query:     c.Query("q"),
	}

	msgs, err := h.contacts.List(c.Request.Context(), session, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, msgs, len(msgs))
}

// Get godoc
// @Summary Get a message
// @Tags Contacts
// @Produce json
// @Param id path string true "Message ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /contacts/{id} [get]
func (h *ContactHandler) Get(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	msg, err := h.contacts.Get(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, msg, nil)
}

// Reply godoc
// @Summary Reply from home
// @Tags Contacts
// @Accept json
// @Produce json
// @Param id path string true "Message ID"
// @Param payload body models.ReplyRequest true "Reply"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /contacts/{id}/reply [post]
func (h *ContactHandler) Reply(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	var req models.ReplyRequest
	if !bindJSON(c, &req, "invalid reply payload") {
		return
	}

	msg, err := h.contacts.Reply(c.Request.Context(), session, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, msg, nil)
}

// SetReadState godoc
// @Summary Mark a message read or unread
// @Tags Contacts
// @Accept json
// @Produce json
// @Param id path string true "Message ID"
// @Param payload body models.ReadStateRequest true "Read state"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /contacts/{id}/read-state [put]
func (h *ContactHandler) SetReadState(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	var req models.ReadStateRequest
	if !bindJSON(c, &req, "invalid read state payload") {
		return
	}

	msg, err := h.contacts.SetReadState(c.Request.Context(), session, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, msg, nil)
}

// PendingReply godoc
// @Summary Most recent unanswered message
// @Description Data is null when every message has a reply
// @Tags Contacts
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /contacts/pending-reply [get]
func (h *ContactHandler) PendingReply(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	msg, err := h.contacts.PendingReply(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, msg, map[string]interface{}{"pending": msg != nil})
}

// Export godoc
// @Summary Export a student's contact log
// @Tags Contacts
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Student ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students/{id}/contacts/export [get]
func (h *ContactHandler) Export(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	file, err := h.exports.ContactLog(c.Request.Context(), session, c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
