package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/contact-book-api/internal/models"
	appErrors "github.com/noah-isme/contact-book-api/pkg/errors"
)

type teacherListStub struct {
	teachers []models.Teacher
	calls    int
	err      error
}

func (s *teacherListStub) List(ctx context.Context) ([]models.Teacher, error) {
	s.calls++
	return s.teachers, s.err
}

type studentListStub struct {
	students []models.Student
	err      error
}

func (s *studentListStub) List(ctx context.Context) ([]models.Student, error) {
	return s.students, s.err
}

func TestResolveIdentityTeacher(t *testing.T) {
	identity, err := ResolveIdentity(fixtureRoster(), "  Tanaka@School.Example ", "")
	require.NoError(t, err)

	assert.Equal(t, models.RoleTeacher, identity.Role)
	assert.Equal(t, teacher3A, identity.Email)
	assert.Equal(t, "田中先生", identity.DisplayName)
	assert.Equal(t, []string{"3-A"}, identity.AssignedClasses.Sorted())
}

func TestResolveIdentityParentDefaultsToLowestStudent(t *testing.T) {
	identity, err := ResolveIdentity(fixtureRoster(), parentTwo, "")
	require.NoError(t, err)

	assert.Equal(t, models.RoleParent, identity.Role)
	assert.Equal(t, "S001", identity.LinkedStudentID)
	assert.Equal(t, []string{"S001", "S003"}, identity.LinkedStudentIDs)
	assert.Equal(t, "青木あおいの保護者", identity.DisplayName)
}

func TestResolveIdentityParentPicksStudent(t *testing.T) {
	identity, err := ResolveIdentity(fixtureRoster(), parentTwo, "S003")
	require.NoError(t, err)
	assert.Equal(t, "S003", identity.LinkedStudentID)

	_, err = ResolveIdentity(fixtureRoster(), parentTwo, "S002")
	assert.ErrorIs(t, err, appErrors.ErrNoLinkedStudent)
}

func TestResolveIdentityUnregistered(t *testing.T) {
	_, err := ResolveIdentity(fixtureRoster(), "stranger@example.com", "")
	assert.ErrorIs(t, err, appErrors.ErrUnregisteredIdentity)

	_, err = ResolveIdentity(fixtureRoster(), "   ", "")
	assert.ErrorIs(t, err, appErrors.ErrUnregisteredIdentity)
}

func TestResolveIdentityPrefersTeacher(t *testing.T) {
	roster := fixtureRoster()
	roster.Students = append(roster.Students, models.Student{StudentID: "S010", Name: "佐藤けん", ClassTag: "3-B", ParentEmail: teacher3B})

	identity, err := ResolveIdentity(roster, teacher3B, "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, identity.Role)
}

func TestResolveIdentityEveryClassSentinel(t *testing.T) {
	for _, list := range []string{"", "ALL", "全体", "3-A, 全体"} {
		roster := fixtureRoster()
		roster.Teachers = []models.Teacher{{Email: "kondo@school.example", Name: "近藤先生", ClassList: list}}

		identity, err := ResolveIdentity(roster, "kondo@school.example", "")
		require.NoError(t, err, list)
		assert.Equal(t, []string{"3-A", "3-B", "3-C"}, identity.AssignedClasses.Sorted(), list)
	}
}

func TestAudienceTeacherEmptyClassListReachesEveryone(t *testing.T) {
	session := sessionFor(t, teacherAll)

	assert.Equal(t, []string{"3-A", "3-B", "3-C"}, session.Audience.ReachableClasses.Sorted())
	assert.Equal(t, []string{"S001", "S002", "S003", "S004"}, session.Audience.ReachableStudents.Sorted())
}

func TestAudienceParentReachesOnlyLinkedStudent(t *testing.T) {
	session := sessionFor(t, parentTwo)

	assert.Equal(t, []string{"S001"}, session.Audience.ReachableStudents.Sorted())
	assert.Equal(t, []string{"3-A"}, session.Audience.ReachableClasses.Sorted())
}

func randomRoster(rng *rand.Rand) models.Roster {
	classes := []string{"1-A", "1-B", "2-A", "2-B", "3-A"}
	var roster models.Roster
	parents := 1 + rng.Intn(8)
	for i := 0; i < 3+rng.Intn(20); i++ {
		roster.Students = append(roster.Students, models.Student{
			StudentID:   fmt.Sprintf("S%03d", i),
			Name:        fmt.Sprintf("student %d", i),
			ClassTag:    classes[rng.Intn(len(classes))],
			ParentEmail: fmt.Sprintf("parent%d@home.example", rng.Intn(parents)),
		})
	}
	for i := 0; i < 1+rng.Intn(4); i++ {
		list := ""
		if rng.Intn(3) > 0 {
			list = classes[rng.Intn(len(classes))] + "," + classes[rng.Intn(len(classes))]
		}
		roster.Teachers = append(roster.Teachers, models.Teacher{Email: fmt.Sprintf("teacher%d@school.example", i), Name: "t", ClassList: list})
	}
	return roster
}

func TestAudienceProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for iter := 0; iter < 200; iter++ {
		roster := randomRoster(rng)
		all := roster.Classes()

		for _, teacher := range roster.Teachers {
			identity, err := ResolveIdentity(roster, teacher.Email, "")
			require.NoError(t, err)
			audience := AudienceFor(*identity, roster.Students)

			if teacher.ClassList == "" {
				assert.Equal(t, all.Sorted(), audience.ReachableClasses.Sorted())
			}
			for _, st := range roster.Students {
				assert.Equal(t, audience.ReachableClasses.Has(st.ClassTag), audience.ReachableStudents.Has(st.StudentID))
			}
		}

		for _, st := range roster.Students {
			identity, err := ResolveIdentity(roster, st.ParentEmail, "")
			require.NoError(t, err)
			audience := AudienceFor(*identity, roster.Students)

			require.Len(t, audience.ReachableStudents, 1)
			assert.True(t, audience.ReachableStudents.Has(identity.LinkedStudentID))
			assert.Contains(t, identity.LinkedStudentIDs, identity.LinkedStudentID)
		}
	}
}

func TestDirectoryServiceRosterCaches(t *testing.T) {
	roster := fixtureRoster()
	teachers := &teacherListStub{teachers: roster.Teachers}
	students := &studentListStub{students: roster.Students}
	cache := NewCacheService(newMemoryCache(), nil, time.Minute, nil, true)
	svc := NewDirectoryService(teachers, students, cache, time.Minute, nil, nil)

	first, err := svc.Roster(context.Background())
	require.NoError(t, err)
	second, err := svc.Roster(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, teachers.calls)
	assert.Len(t, second.Students, len(first.Students))

	svc.InvalidateRoster(context.Background())
	_, err = svc.Roster(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, teachers.calls)
}

func TestDirectoryServiceRosterSchemaError(t *testing.T) {
	roster := fixtureRoster()
	roster.Students = append(roster.Students, models.Student{StudentID: "S099", Name: "no parent", ClassTag: "3-A"})
	svc := NewDirectoryService(&teacherListStub{teachers: roster.Teachers}, &studentListStub{students: roster.Students}, nil, time.Minute, nil, nil)

	_, err := svc.Roster(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrSchema)
	assert.Contains(t, appErrors.FromError(err).Message, "S099")
}

func TestDirectoryServiceRosterUnavailable(t *testing.T) {
	svc := NewDirectoryService(&teacherListStub{err: errors.New("connection refused")}, &studentListStub{}, nil, time.Minute, nil, nil)

	_, _, err := svc.Resolve(context.Background(), teacher3A, "")
	assert.ErrorIs(t, err, appErrors.ErrCollaboratorUnavailable)
}
