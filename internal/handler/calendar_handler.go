package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contact-book-api/internal/models"
	appErrors "github.com/noah-isme/contact-book-api/pkg/errors"
	"github.com/noah-isme/contact-book-api/pkg/response"
)

const maxICSUploadBytes = 1 << 20

type calendarService interface {
	Upcoming(ctx context.Context, session *models.Session, from time.Time) ([]models.CalendarEvent, error)
	Create(ctx context.Context, session *models.Session, req models.CreateEventRequest) (*models.CalendarEvent, error)
	ImportICS(ctx context.Context, session *models.Session, r io.Reader, targets []string) ([]models.CalendarEvent, error)
	ExportICS(ctx context.Context, session *models.Session) ([]byte, error)
}

// CalendarHandler exposes the class-filtered school calendar.
type CalendarHandler struct {
	service calendarService
}

// NewCalendarHandler constructs a CalendarHandler.
func NewCalendarHandler(svc calendarService) *CalendarHandler {
	return &CalendarHandler{service: svc}
}

// List godoc
// @Summary Upcoming events
// @Tags Calendar
// @Produce json
// @Param from query string false "YYYY-MM-DD, defaults to today"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /calendar [get]
func (h *CalendarHandler) List(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	var from time.Time
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD"))
			return
		}
		from = parsed
	}

	events, err := h.service.Upcoming(c.Request.Context(), session, from)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, events, len(events))
}

// Create godoc
// @Summary Add an event
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body models.CreateEventRequest true "Event"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /calendar [post]
func (h *CalendarHandler) Create(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	var req models.CreateEventRequest
	if !bindJSON(c, &req, "invalid event payload") {
		return
	}

	event, err := h.service.Create(c.Request.Context(), session, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Import godoc
// @Summary Import events from an iCalendar file
// @Tags Calendar
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "iCalendar file"
// @Param target_classes formData []string false "Target classes for every imported event"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /calendar/import [post]
func (h *CalendarHandler) Import(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	if fileHeader.Size > maxICSUploadBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "calendar file is too large"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read upload"))
		return
	}
	defer file.Close()

	events, err := h.service.ImportICS(c.Request.Context(), session, io.LimitReader(file, maxICSUploadBytes), c.PostFormArray("target_classes"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, events, map[string]interface{}{"count": len(events)})
}

// ICS godoc
// @Summary Calendar feed
// @Description Visible upcoming events as text/calendar
// @Tags Calendar
// @Produce text/calendar
// @Success 200 {file} file
// @Router /calendar.ics [get]
func (h *CalendarHandler) ICS(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	body, err := h.service.ExportICS(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, "calendar.ics", "text/calendar; charset=utf-8", body)
}
