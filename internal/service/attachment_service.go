package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path"
	"regexp"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/contact-book-api/internal/models"
	appErrors "github.com/noah-isme/contact-book-api/pkg/errors"
	"github.com/noah-isme/contact-book-api/pkg/storage"
)

// sniffLen covers the signatures mimetype needs for images and PDF.
const sniffLen = 3072

var attachmentPathPattern = regexp.MustCompile(`^\d{4}/\d{2}/[0-9a-f-]{36}\.[a-z0-9]+$`)

type attachmentStorage interface {
	SaveStream(filename string, r io.Reader, limit int64) (int64, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type attachmentSigner interface {
	Generate(attachmentID, relPath string) (string, time.Time, error)
	Parse(token string) (attachmentID, relPath string, err error)
}

// AttachmentConfig controls upload validation and URL building.
type AttachmentConfig struct {
	BaseURL      string
	MaxSizeBytes int64
	AllowedMIMEs []string
}

// AttachmentService stores uploads on disk and hands out signed download URLs.
type AttachmentService struct {
	storage attachmentStorage
	signer  attachmentSigner
	config  AttachmentConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewAttachmentService constructs an AttachmentService.
func NewAttachmentService(store attachmentStorage, signer attachmentSigner, config AttachmentConfig, logger *zap.Logger) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttachmentService{storage: store, signer: signer, config: config, logger: logger, now: time.Now}
}

// Upload validates and stores a file. The content type is sniffed from the
// bytes, never taken from the client.
func (s *AttachmentService) Upload(ctx context.Context, session *models.Session, r io.Reader, declaredSize int64) (*models.Attachment, error) {
	if s.config.MaxSizeBytes > 0 && declaredSize > s.config.MaxSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds size limit")
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read upload")
	}
	if n == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	head = head[:n]

	mtype := mimetype.Detect(head)
	if !s.allowed(mtype) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file type "+mtype.String()+" is not allowed")
	}

	id := uuid.NewString()
	relPath := path.Join(s.now().UTC().Format("2006/01"), id+mtype.Extension())
	size, err := s.storage.SaveStream(relPath, io.MultiReader(bytes.NewReader(head), r), s.config.MaxSizeBytes)
	if err != nil {
		if errors.Is(err, storage.ErrFileTooLarge) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds size limit")
		}
		return nil, appErrors.Unavailable(err, "failed to store attachment")
	}

	token, expiresAt, err := s.signer.Generate(id, relPath)
	if err != nil {
		if delErr := s.storage.Delete(relPath); delErr != nil {
			s.logger.Warn("failed to remove unsigned attachment", zap.String("path", relPath), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign attachment url")
	}

	s.logger.Info("attachment stored",
		zap.String("path", relPath),
		zap.String("content_type", mtype.String()),
		zap.Int64("size", size),
		zap.String("email", session.Identity.Email),
	)

	return &models.Attachment{
		Path:        relPath,
		ContentType: mtype.String(),
		Size:        size,
		URL:         s.config.BaseURL + "/" + token,
		ExpiresAt:   expiresAt,
	}, nil
}

// Open resolves a signed token to the stored file.
func (s *AttachmentService) Open(token string) (*os.File, string, error) {
	_, relPath, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, appErrors.ErrForbidden.Message)
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", appErrors.ErrForbidden
		}
		return nil, "", appErrors.Unavailable(err, "failed to open attachment")
	}
	return file, path.Base(relPath), nil
}

// SignedURL returns a fresh download URL for a stored path, or "" when none.
func (s *AttachmentService) SignedURL(relPath string) string {
	if s == nil || relPath == "" {
		return ""
	}
	token, _, err := s.signer.Generate(uuid.NewString(), relPath)
	if err != nil {
		s.logger.Warn("failed to sign attachment url", zap.String("path", relPath), zap.Error(err))
		return ""
	}
	return s.config.BaseURL + "/" + token
}

// ValidatePath accepts empty paths and paths issued by Upload.
func (s *AttachmentService) ValidatePath(relPath string) error {
	if relPath == "" || attachmentPathPattern.MatchString(relPath) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrValidation, "attachment_path is not a stored attachment")
}

func (s *AttachmentService) allowed(mtype *mimetype.MIME) bool {
	if len(s.config.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.config.AllowedMIMEs {
		if mtype.Is(allowed) {
			return true
		}
	}
	return false
}
