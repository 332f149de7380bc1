package workflow

import (
	"context"
	"strings"

	"reelhouse/internal/logging"
	"reelhouse/internal/metrics"
	"reelhouse/internal/notifications"
	"reelhouse/internal/queue"
	"reelhouse/internal/services"
)

// handleJobFailure is the single failure path for jobs. It marks the job
// failed, then for conversions delivers the failure callback once. A job that
// already reached a terminal state is left alone.
func (m *Manager) handleJobFailure(ctx context.Context, job *queue.Job, jobErr error) {
	persistCtx, cancel := persistContext(ctx)
	defer cancel()
	logger := m.jobLogger(ctx)

	message := failureMessage(job, jobErr)
	failed, err := m.store.Fail(persistCtx, job.ID, message)
	if err != nil {
		m.setLastError(err)
		logger.Error("failed to persist job failure",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_persist_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return
	}
	if !failed {
		logger.Debug("job already finished; failure not recorded", logging.Error(jobErr))
		return
	}

	job.Status = queue.StatusFailed
	job.Error = message
	m.setLastError(jobErr)
	m.setLastJob(job)
	metrics.JobsTotal.WithLabelValues(string(job.Kind), string(queue.StatusFailed)).Inc()

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "job_failed"),
		logging.String(logging.FieldErrorKind, services.Kind(jobErr)),
		logging.String("kind", string(job.Kind)),
		logging.String("input", job.Input),
		logging.String("error_message", message),
		logging.Alert("job_failure"),
		logging.Error(jobErr),
	}
	if output := services.ToolOutput(jobErr); output != "" {
		attrs = append(attrs, logging.String("tool_output", output))
	}
	logger.Error("job failed", logging.Args(attrs...)...)

	if job.Kind == queue.KindConvert {
		m.deliverCallback(persistCtx, logger, job, notifications.OutcomeConversionFailed)
	}
	if err := m.alerter.JobFailed(persistCtx, string(job.Kind), job.Input, jobErr); err != nil {
		logger.Warn("failure alert not delivered",
			logging.Error(err),
			logging.String(logging.FieldEventType, "alert_failed"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_url and ntfy_topic"),
		)
	}
}

func failureMessage(job *queue.Job, jobErr error) string {
	if jobErr == nil {
		return string(job.Kind) + " failed without error detail"
	}
	if message := strings.TrimSpace(services.Details(jobErr)); message != "" {
		return message
	}
	return string(job.Kind) + " failed"
}
