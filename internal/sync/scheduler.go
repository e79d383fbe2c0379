package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tributary-data/tributary/pkg/logger"
)

// Scheduler invokes the sync pipeline for all configured tables at a
// fixed wall-clock interval. It is single-threaded: a long-running sync
// blocks the loop, and the interval is expected to exceed a sync's
// duration. There is no overlap protection beyond that.
type Scheduler struct {
	manager  *Manager
	interval time.Duration
	logger   *zap.Logger
}

// NewScheduler creates a scheduler around the sync manager.
func NewScheduler(manager *Manager, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		manager:  manager,
		interval: interval,
		logger:   logger.Get().With(zap.String("component", "scheduler")),
	}
}

// Run executes an immediate sync pass and then one per interval until
// the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))

	s.manager.SyncAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.manager.SyncAll(ctx)
		}
	}
}
