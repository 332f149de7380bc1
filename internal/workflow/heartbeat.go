package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"reelhouse/internal/logging"
	"reelhouse/internal/queue"
)

// HeartbeatMonitor refreshes running jobs and finds the ones that stopped.
type HeartbeatMonitor struct {
	store             *queue.Store
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &HeartbeatMonitor{
		store:             store,
		logger:            logger,
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
	}
}

// StaleJobs returns running jobs whose heartbeat is older than the timeout.
// A zero timeout disables detection.
func (h *HeartbeatMonitor) StaleJobs(ctx context.Context, now time.Time) ([]*queue.Job, error) {
	if h.heartbeatTimeout <= 0 {
		return nil, nil
	}
	return h.store.ListStale(ctx, now.Add(-h.heartbeatTimeout))
}

// StartLoop runs a heartbeat updater for a specific job until context cancellation.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, jobID int64) {
	defer wg.Done()
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger.With(logging.String(logging.FieldComponent, "workflow-heartbeat")))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.Heartbeat(ctx, jobID); err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Debug("job finished, heartbeat update cancelled")
				} else {
					logger.Warn("heartbeat update failed", logging.Error(err))
				}
			}
		}
	}
}
