package handler

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contact-book-api/internal/models"
	appErrors "github.com/noah-isme/contact-book-api/pkg/errors"
	"github.com/noah-isme/contact-book-api/pkg/response"
)

type attachmentService interface {
	Upload(ctx context.Context, session *models.Session, r io.Reader, declaredSize int64) (*models.Attachment, error)
	Open(token string) (*os.File, string, error)
}

// AttachmentHandler uploads files and serves them behind signed tokens.
type AttachmentHandler struct {
	service attachmentService
}

// NewAttachmentHandler constructs an AttachmentHandler.
func NewAttachmentHandler(svc attachmentService) *AttachmentHandler {
	return &AttachmentHandler{service: svc}
}

// Upload godoc
// @Summary Upload an attachment
// @Description Stores an image or PDF and returns its path and a signed download URL
// @Tags Attachments
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attachments [post]
func (h *AttachmentHandler) Upload(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read upload"))
		return
	}
	defer file.Close()

	att, err := h.service.Upload(c.Request.Context(), session, file, fileHeader.Size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, att)
}

// Download godoc
// @Summary Download an attachment
// @Description The token comes from a signed attachment URL and expires
// @Tags Attachments
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /attachments/{token} [get]
func (h *AttachmentHandler) Download(c *gin.Context) {
	file, name, err := h.service.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Unavailable(err, "failed to read attachment"))
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), file)
}
