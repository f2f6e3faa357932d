package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/contact-book-api/internal/models"
	appErrors "github.com/noah-isme/contact-book-api/pkg/errors"
)

type memoStore interface {
	FindByStudent(ctx context.Context, studentID string) (*models.SupportMemo, error)
	ListByStudents(ctx context.Context, studentIDs []string) ([]models.SupportMemo, error)
	Upsert(ctx context.Context, memo *models.SupportMemo) error
}

// MemoService keeps the teacher-only support memo for each student.
type MemoService struct {
	repo   memoStore
	guard  *AccessGuard
	logger *zap.Logger
	now    func() time.Time
}

// NewMemoService constructs a MemoService.
func NewMemoService(repo memoStore, guard *AccessGuard, logger *zap.Logger) *MemoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoService{repo: repo, guard: guard, logger: logger, now: time.Now}
}

// List returns the memos of every reachable student.
func (s *MemoService) List(ctx context.Context, session *models.Session) ([]models.SupportMemo, error) {
	if err := s.guard.RequireTeacher("list_memos", session); err != nil {
		return nil, err
	}
	memos, err := s.repo.ListByStudents(ctx, session.Audience.ReachableStudents.Sorted())
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to load support memos")
	}
	return VisibleMemos(memos, session), nil
}

// Get returns one student's memo.
func (s *MemoService) Get(ctx context.Context, session *models.Session, studentID string) (*models.SupportMemo, error) {
	if err := s.authorize("get_memo", session, studentID); err != nil {
		return nil, err
	}
	memo, err := s.repo.FindByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "support memo not found")
		}
		return nil, appErrors.Unavailable(err, "failed to load support memo")
	}
	return memo, nil
}

// Save creates or replaces a student's memo.
func (s *MemoService) Save(ctx context.Context, session *models.Session, studentID string, req models.SaveMemoRequest) (*models.SupportMemo, error) {
	if err := s.authorize("save_memo", session, studentID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	memo := &models.SupportMemo{StudentID: studentID, Content: req.Content, CreatedAt: now, LastUpdated: now}
	if err := s.repo.Upsert(ctx, memo); err != nil {
		return nil, appErrors.Unavailable(err, "failed to save support memo")
	}
	s.logger.Info("support memo saved", zap.String("student_id", studentID), zap.String("email", session.Identity.Email))
	return memo, nil
}

func (s *MemoService) authorize(operation string, session *models.Session, studentID string) error {
	if err := s.guard.RequireTeacher(operation, session); err != nil {
		return err
	}
	return s.guard.RequireStudent(operation, session, studentID)
}
