package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/contact-book-api/internal/models"
	appErrors "github.com/noah-isme/contact-book-api/pkg/errors"
	"github.com/noah-isme/contact-book-api/pkg/validation"
)

type teacherRosterReader interface {
	List(ctx context.Context) ([]models.Teacher, error)
}

type studentRosterReader interface {
	List(ctx context.Context) ([]models.Student, error)
}

// DirectoryService resolves signed-in emails against the teacher and student rosters.
type DirectoryService struct {
	teachers  teacherRosterReader
	students  studentRosterReader
	cache     *CacheService
	ttl       time.Duration
	validator *validation.Validator
	logger    *zap.Logger
}

// NewDirectoryService constructs a DirectoryService.
func NewDirectoryService(teachers teacherRosterReader, students studentRosterReader, cache *CacheService, ttl time.Duration, validate *validation.Validator, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	return &DirectoryService{teachers: teachers, students: students, cache: cache, ttl: ttl, validator: validate, logger: logger}
}

// Roster returns a snapshot of both rosters, served from cache when fresh.
// Every row is checked at this boundary so a malformed roster fails fast.
func (s *DirectoryService) Roster(ctx context.Context) (models.Roster, error) {
	var roster models.Roster
	if s.cache.Get(ctx, cacheKeyRoster, &roster) {
		return roster, nil
	}

	teachers, err := s.teachers.List(ctx)
	if err != nil {
		return models.Roster{}, appErrors.Unavailable(err, "failed to load teacher roster")
	}
	students, err := s.students.List(ctx)
	if err != nil {
		return models.Roster{}, appErrors.Unavailable(err, "failed to load student roster")
	}
	roster = models.Roster{Teachers: teachers, Students: students}
	if err := s.checkRoster(roster); err != nil {
		s.logger.Error("roster failed validation", zap.Error(err))
		return models.Roster{}, err
	}

	s.cache.Set(ctx, cacheKeyRoster, roster, s.ttl)
	return roster, nil
}

// InvalidateRoster drops the cached roster snapshot.
func (s *DirectoryService) InvalidateRoster(ctx context.Context) {
	s.cache.Invalidate(ctx, cacheKeyRoster)
}

// Resolve maps an email to its identity. For parents with several children,
// studentID picks one; empty selects the lowest student_id.
func (s *DirectoryService) Resolve(ctx context.Context, email, studentID string) (*models.Identity, models.Roster, error) {
	roster, err := s.Roster(ctx)
	if err != nil {
		return nil, models.Roster{}, err
	}
	identity, err := ResolveIdentity(roster, email, studentID)
	if err != nil {
		return nil, models.Roster{}, err
	}
	return identity, roster, nil
}

func (s *DirectoryService) checkRoster(roster models.Roster) error {
	for _, t := range roster.Teachers {
		if err := s.validator.Struct(t); err != nil {
			return appErrors.Wrap(err, appErrors.ErrSchema.Code, appErrors.ErrSchema.Status,
				fmt.Sprintf("teacher %q: %s", t.Email, s.validator.Message(err, "invalid row")))
		}
	}
	for _, st := range roster.Students {
		if err := s.validator.Struct(st); err != nil {
			return appErrors.Wrap(err, appErrors.ErrSchema.Code, appErrors.ErrSchema.Status,
				fmt.Sprintf("student %q: %s", st.StudentID, s.validator.Message(err, "invalid row")))
		}
	}
	return nil
}

// ResolveIdentity is the pure directory lookup. Teachers win when an email is
// on both rosters. Emails compare case-insensitively.
func ResolveIdentity(roster models.Roster, email, studentID string) (*models.Identity, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, appErrors.ErrUnregisteredIdentity
	}

	for _, t := range roster.Teachers {
		if normalizeEmail(t.Email) != email {
			continue
		}
		return &models.Identity{
			Email:           email,
			Role:            models.RoleTeacher,
			DisplayName:     t.Name,
			AssignedClasses: expandClassList(t.ClassList, roster),
		}, nil
	}

	var children []models.Student
	for _, st := range roster.Students {
		if normalizeEmail(st.ParentEmail) == email {
			children = append(children, st)
		}
	}
	if len(children) == 0 {
		return nil, appErrors.ErrUnregisteredIdentity
	}
	sort.Slice(children, func(i, j int) bool { return children[i].StudentID < children[j].StudentID })

	linked := children[0]
	if studentID != "" {
		found := false
		for _, child := range children {
			if child.StudentID == studentID {
				linked, found = child, true
				break
			}
		}
		if !found {
			return nil, appErrors.ErrNoLinkedStudent
		}
	}

	ids := make([]string, len(children))
	for i, child := range children {
		ids[i] = child.StudentID
	}
	return &models.Identity{
		Email:            email,
		Role:             models.RoleParent,
		DisplayName:      linked.Name + "の保護者",
		LinkedStudentID:  linked.StudentID,
		LinkedStudentIDs: ids,
	}, nil
}

// expandClassList turns a teacher's class_list into reachable classes. An
// empty list, or one naming an every-class sentinel, reaches every roster class.
func expandClassList(raw string, roster models.Roster) models.StringSet {
	tags := models.ParseClassTags(raw)
	if len(tags) == 0 {
		return roster.Classes()
	}
	for _, tag := range tags {
		if models.IsAllClassTag(tag) {
			return roster.Classes()
		}
	}
	return models.NewStringSet(tags...)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
