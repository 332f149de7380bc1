package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"reelhouse/internal/logging"
	"reelhouse/internal/metrics"
	"reelhouse/internal/notifications"
	"reelhouse/internal/queue"
	"reelhouse/internal/services"
	"reelhouse/internal/stage"
)

const persistTimeout = 30 * time.Second

// persistContext detaches from ctx so outcomes are recorded even after the
// job deadline or a shutdown cancelled it.
func persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}

func withJobContext(ctx context.Context, job *queue.Job) context.Context {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithLane(ctx, string(job.Lane))
	ctx = services.WithStage(ctx, string(job.Kind))
	return services.WithRequestID(ctx, job.CorrelationID)
}

func (m *Manager) jobLogger(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, m.logger.With(logging.String(logging.FieldComponent, "workflow-manager")))
}

func (m *Manager) processJob(ctx context.Context, lane *laneState, workerLogger *slog.Logger, job *queue.Job) {
	jobCtx := withJobContext(ctx, job)
	logger := m.jobLogger(jobCtx)
	m.setLastJob(job)

	handler := m.handlerFor(job.Kind)
	if handler == nil {
		workerLogger.Warn("no handler configured for job kind", logging.String("kind", string(job.Kind)))
		m.handleJobFailure(jobCtx, job, services.Wrap(services.ErrConfiguration, "workflow", "dispatch", fmt.Sprintf("no handler registered for %s", job.Kind), nil))
		return
	}

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = lane.timeout
	}
	runCtx, cancel := context.WithTimeout(jobCtx, timeout)
	defer cancel()

	inProgress := metrics.JobsInProgress.WithLabelValues(string(lane.lane))
	inProgress.Inc()
	defer inProgress.Dec()

	start := time.Now()
	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("kind", string(job.Kind)),
		logging.String("input", job.Input),
		logging.String("output", job.Output),
		logging.String("worker_id", job.WorkerID),
		logging.Duration("timeout", timeout),
	)

	execErr := m.executeWithHeartbeat(runCtx, handler, job)
	metrics.JobDuration.WithLabelValues(string(job.Kind)).Observe(time.Since(start).Seconds())
	if execErr != nil {
		switch {
		case ctx.Err() != nil:
			execErr = services.Wrap(services.ErrTimeout, "workflow", "run", "interrupted by daemon shutdown", execErr)
		case errors.Is(runCtx.Err(), context.DeadlineExceeded) && !errors.Is(execErr, services.ErrTimeout):
			execErr = services.Wrap(services.ErrTimeout, "workflow", "run", fmt.Sprintf("exceeded %s", timeout), execErr)
		}
		m.handleJobFailure(jobCtx, job, execErr)
		return
	}

	m.completeJob(jobCtx, logger, job, time.Since(start))
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, job *queue.Job) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)

	execErr := runHandler(ctx, handler, job)
	hbCancel()
	hbWG.Wait()
	return execErr
}

// runHandler converts a handler panic into an error so the failure hook runs.
func runHandler(ctx context.Context, handler stage.Handler, job *queue.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v\n%s", r, debug.Stack())
		}
	}()
	if err := handler.Prepare(ctx, job); err != nil {
		return err
	}
	return handler.Execute(ctx, job)
}

func (m *Manager) completeJob(ctx context.Context, logger *slog.Logger, job *queue.Job, elapsed time.Duration) {
	persistCtx, cancel := persistContext(ctx)
	defer cancel()

	completed, err := m.store.Complete(persistCtx, job.ID)
	if err != nil {
		m.setLastError(err)
		logger.Error("failed to persist job result",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_persist_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return
	}
	if !completed {
		logger.Warn("job finished after it was already failed; result discarded",
			logging.String(logging.FieldEventType, "job_result_discarded"),
			logging.String(logging.FieldErrorHint, "raise queue.heartbeat_timeout if the sweep fails live jobs"),
		)
		return
	}

	job.Status = queue.StatusSucceeded
	m.setLastJob(job)
	metrics.JobsTotal.WithLabelValues(string(job.Kind), string(queue.StatusSucceeded)).Inc()
	logger.Info("job succeeded",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String("kind", string(job.Kind)),
		logging.Duration("job_duration", elapsed),
	)
	if job.Kind == queue.KindConvert {
		m.deliverCallback(persistCtx, logger, job, notifications.OutcomeConverted)
	}
}
