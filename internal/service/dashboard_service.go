package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/contact-book-api/internal/models"
	appErrors "github.com/noah-isme/contact-book-api/pkg/errors"
)

type contactStatsSource interface {
	ListByStudents(ctx context.Context, studentIDs []string) ([]models.ContactMessage, error)
	ListBroadcasts(ctx context.Context) ([]models.ContactMessage, error)
}

// DashboardService summarises contact book activity for a teacher's audience.
type DashboardService struct {
	contacts contactStatsSource
	cache    *CacheService
	ttl      time.Duration
	guard    *AccessGuard
	logger   *zap.Logger
	now      func() time.Time
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(contacts contactStatsSource, cache *CacheService, ttl time.Duration, guard *AccessGuard, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{contacts: contacts, cache: cache, ttl: ttl, guard: guard, logger: logger, now: time.Now}
}

// Summary returns message counts for the teacher's reachable students.
func (s *DashboardService) Summary(ctx context.Context, session *models.Session) (*models.ContactStats, error) {
	if err := s.guard.RequireTeacher("dashboard", session); err != nil {
		return nil, err
	}

	key := dashboardKey(session.Identity.Email)
	var cached models.ContactStats
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	broadcasts, err := s.contacts.ListBroadcasts(ctx)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to load broadcasts")
	}
	individual, err := s.contacts.ListByStudents(ctx, session.Audience.ReachableStudents.Sorted())
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to load contact logs")
	}

	stats := BuildContactStats(broadcasts, VisibleMessages(individual, session))
	stats.GeneratedAt = s.now().UTC()
	s.cache.Set(ctx, key, stats, s.ttl)
	return stats, nil
}

// BuildContactStats counts broadcasts and individual messages by state and by
// the month they were posted in.
func BuildContactStats(broadcasts, individual []models.ContactMessage) *models.ContactStats {
	stats := &models.ContactStats{BroadcastCount: len(broadcasts), Monthly: []models.MonthlyCount{}}
	monthly := make(map[string]int)
	for _, msg := range individual {
		if msg.IsBroadcast() {
			continue
		}
		stats.IndividualCount++
		if msg.IsRead() {
			stats.ReadCount++
		} else {
			stats.UnreadCount++
		}
		if msg.Replied() {
			stats.RepliedCount++
		}
		monthly[msg.CreatedAt.UTC().Format("2006-01")]++
	}

	for month, count := range monthly {
		stats.Monthly = append(stats.Monthly, models.MonthlyCount{Month: month, Count: count})
	}
	sort.Slice(stats.Monthly, func(i, j int) bool { return stats.Monthly[i].Month < stats.Monthly[j].Month })
	return stats
}
