package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/david/eu-grants-monitor/internal/models"
)

// Scheduler runs a cycle immediately and then every interval until its
// context ends.
type Scheduler struct {
	monitor  *Monitor
	interval time.Duration
	profile  func() models.BusinessProfile
	logger   *slog.Logger
}

func NewScheduler(m *Monitor, interval time.Duration, profile func() models.BusinessProfile, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{monitor: m, interval: interval, profile: profile, logger: logger}
}

// Run blocks until ctx is done and returns ctx.Err(). A cycle that is
// already running (for example one started through the API) is skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.runOnce(ctx)
		s.logger.Info("next_cycle_scheduled", "in", s.interval.String())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	_, err := s.monitor.RunCycle(ctx, s.profile())
	switch {
	case err == nil:
	case errors.Is(err, ErrCycleRunning):
		s.logger.Warn("cycle_skipped", "reason", err)
	case ctx.Err() != nil:
	default:
		s.logger.Error("cycle_failed", "error", err)
	}
}
