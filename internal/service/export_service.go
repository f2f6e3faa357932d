package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/contact-book-api/internal/models"
	appErrors "github.com/noah-isme/contact-book-api/pkg/errors"
	"github.com/noah-isme/contact-book-api/pkg/export"
)

// Renderer turns a dataset into a downloadable file.
type Renderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

type studentLogReader interface {
	StudentLog(ctx context.Context, session *models.Session, studentID string) ([]models.ContactMessage, error)
}

type studentFinder interface {
	FindByID(ctx context.Context, studentID string) (*models.Student, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

var contactLogHeaders = []string{"Date", "Sent at", "Sender", "Message", "Items notice", "Remarks", "Home reply", "Read state"}

// ExportService renders a student's contact log for printing or archiving.
type ExportService struct {
	contacts  studentLogReader
	students  studentFinder
	renderers map[string]Renderer
	guard     *AccessGuard
	logger    *zap.Logger
}

// NewExportService constructs an ExportService keyed by format name ("csv", "pdf").
func NewExportService(contacts studentLogReader, students studentFinder, renderers map[string]Renderer, guard *AccessGuard, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{contacts: contacts, students: students, renderers: renderers, guard: guard, logger: logger}
}

// NewRenderers registers the CSV and PDF exporters.
func NewRenderers(pdfFontPath string) map[string]Renderer {
	return map[string]Renderer{
		"csv": export.NewCSVExporter(),
		"pdf": export.NewPDFExporter(pdfFontPath),
	}
}

// ContactLog renders a reachable student's log in the requested format.
func (s *ExportService) ContactLog(ctx context.Context, session *models.Session, studentID, format string) (*ExportFile, error) {
	if err := s.guard.RequireTeacher("export_contact_log", session); err != nil {
		return nil, err
	}
	if format == "" {
		format = "csv"
	}
	r, ok := s.renderers[strings.ToLower(format)]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	msgs, err := s.contacts.StudentLog(ctx, session, studentID)
	if err != nil {
		return nil, err
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.guard.Deny("export_contact_log", session)
		}
		return nil, appErrors.Unavailable(err, "failed to load student")
	}

	body, err := r.Render(contactLogDataset(*student, msgs))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("contact log exported", zap.String("student_id", studentID), zap.String("format", format), zap.Int("messages", len(msgs)))

	return &ExportFile{
		Filename:    fmt.Sprintf("contact-log-%s.%s", studentID, r.Extension()),
		ContentType: r.ContentType(),
		Body:        body,
	}, nil
}

func contactLogDataset(student models.Student, msgs []models.ContactMessage) export.Dataset {
	rows := make([][]string, 0, len(msgs))
	for _, msg := range msgs {
		reply := ""
		if msg.HomeReply != nil {
			reply = *msg.HomeReply
		}
		state := ""
		if msg.ReadState != nil {
			state = string(*msg.ReadState)
		}
		rows = append(rows, []string{
			msg.ContactDate.Format("2006/01/02"),
			msg.CreatedAt.Format("2006/01/02 15:04:05"),
			msg.SenderName,
			msg.Message,
			msg.ItemsNotice,
			msg.Remarks,
			reply,
			state,
		})
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Contact log: %s (%s, %s)", student.Name, student.StudentID, student.ClassTag),
		Headers: contactLogHeaders,
		Rows:    rows,
	}
}
