package reconciliation

import (
	"context"
	"log/slog"
	"time"
)

type Runner interface {
	Run(ctx context.Context, scope Scope) (Summary, error)
}

// Scheduler runs a full-scope reconciliation on a fixed interval.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{runner: runner, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled. A failed run is logged and the next
// tick tries again.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.runner.Run(ctx, Scope{}); err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "scheduled reconciliation failed", "error", err)
			}
		}
	}
}
