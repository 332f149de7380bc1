package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"reelhouse/internal/logging"
)

// Start begins background processing: lane workers plus the stale sweep.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	lanes := make([]*laneState, 0, len(m.laneOrder))
	for _, name := range m.laneOrder {
		if lane := m.lanes[name]; lane != nil {
			lanes = append(lanes, lane)
		}
	}
	if len(lanes) == 0 {
		m.mu.Unlock()
		return errors.New("workflow handlers not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	sweeper, err := m.newSweeper(runCtx)
	if err != nil {
		m.mu.Unlock()
		cancel()
		return err
	}
	m.cancel = cancel
	m.sweeper = sweeper
	m.running = true

	workers := 0
	for _, lane := range lanes {
		lane.logger = m.laneLogger(lane)
		workers += lane.workers
	}
	m.wg.Add(workers)
	m.mu.Unlock()

	// Jobs left running by a previous process are failed before new work starts.
	m.runSweep(runCtx)
	sweeper.Start()

	instance := uuid.NewString()[:8]
	for _, lane := range lanes {
		for i := 1; i <= lane.workers; i++ {
			workerID := fmt.Sprintf("%s-%s-%d", instance, lane.lane, i)
			go m.runWorker(runCtx, lane, workerID)
		}
		lane.logger.Info("lane started",
			logging.String(logging.FieldEventType, "lane_start"),
			logging.Int("workers", lane.workers),
			logging.Duration("job_timeout", lane.timeout),
		)
	}
	return nil
}

// Stop terminates background processing and waits for running jobs to wind down.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	sweeper := m.sweeper
	m.running = false
	m.cancel = nil
	m.sweeper = nil
	m.mu.Unlock()

	if sweeper != nil {
		<-sweeper.Stop().Done()
	}
	cancel()
	m.wg.Wait()
}

func (m *Manager) runWorker(ctx context.Context, lane *laneState, workerID string) {
	defer m.wg.Done()
	logger := lane.logger.With(logging.String("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.store.ClaimNext(ctx, lane.lane, workerID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx, lane)
			continue
		}
		m.processJob(ctx, lane, logger, job)
	}
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to claim next job",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_claim_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context, lane *laneState) {
	select {
	case <-ctx.Done():
	case <-lane.wake:
	case <-time.After(m.pollInterval):
	}
}

func (m *Manager) laneLogger(lane *laneState) *slog.Logger {
	return m.logger.With(
		logging.String(logging.FieldComponent, fmt.Sprintf("workflow-%s-runner", lane.lane)),
		logging.String(logging.FieldLane, string(lane.lane)),
	)
}
