package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/reneee98/layers/pkg/domain/billing"
)

// TaskScheduler is the storage side of housekeeping.
type TaskScheduler interface {
	RollOverdueTasks(ctx context.Context, today time.Time) (int64, error)
}

// HousekeepingService runs opportunistic maintenance that must never fail a request.
type HousekeepingService struct {
	repo   TaskScheduler
	logger *slog.Logger
	now    func() time.Time
}

func NewHousekeepingService(repo TaskScheduler, logger *slog.Logger) *HousekeepingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HousekeepingService{repo: repo, logger: logger, now: time.Now}
}

// SetClock replaces the wall clock, for tests.
func (s *HousekeepingService) SetClock(now func() time.Time) {
	s.now = now
}

// RollOverdueTasks moves unfinished tasks due before today to today. It
// returns how many moved; failures are logged and reported as zero.
func (s *HousekeepingService) RollOverdueTasks(ctx context.Context) int64 {
	n, err := s.repo.RollOverdueTasks(ctx, billing.DateOf(s.now()))
	if err != nil {
		s.logger.Warn("housekeeping: rolling overdue tasks failed", "error", err)
		return 0
	}
	if n > 0 {
		s.logger.Info("housekeeping: overdue tasks moved to today", "count", n)
	}
	return n
}
