package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"reelhouse/internal/logging"
	"reelhouse/internal/metrics"
	"reelhouse/internal/services"
)

// DefaultSweepSchedule is used when queue.sweep_schedule is blank.
const DefaultSweepSchedule = "@every 1m"

func (m *Manager) newSweeper(ctx context.Context) (*cron.Cron, error) {
	schedule := strings.TrimSpace(m.cfg.Queue.SweepSchedule)
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(schedule, func() { m.runSweep(ctx) }); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "schedule sweep", "invalid queue.sweep_schedule "+schedule, err)
	}
	return sweeper, nil
}

func (m *Manager) runSweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := m.SweepStale(ctx); err != nil {
		m.setLastError(err)
		m.logger.Warn("stale job sweep failed; stuck jobs may remain",
			logging.Error(err),
			logging.String(logging.FieldEventType, "stale_sweep_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	}
}

// SweepStale fails every running job whose heartbeat expired and fires its
// failure callback. It returns the number of jobs it failed.
func (m *Manager) SweepStale(ctx context.Context) (int, error) {
	stale, err := m.heartbeat.StaleJobs(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("list stale jobs: %w", err)
	}
	for _, job := range stale {
		last := "never"
		if job.HeartbeatAt != nil {
			last = job.HeartbeatAt.UTC().Format(time.RFC3339)
		}
		jobErr := services.Wrap(services.ErrTimeout, "workflow", "sweep", "heartbeat expired (last "+last+")", nil)
		m.handleJobFailure(withJobContext(ctx, job), job, jobErr)
		metrics.StaleJobsFailed.Inc()
	}
	if len(stale) > 0 {
		m.logger.Info("failed stale jobs",
			logging.String(logging.FieldEventType, "stale_sweep"),
			logging.Int("count", len(stale)),
		)
	}
	return len(stale), nil
}
