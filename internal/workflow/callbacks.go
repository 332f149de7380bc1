package workflow

import (
	"context"
	"log/slog"
	"strings"

	"reelhouse/internal/logging"
	"reelhouse/internal/metrics"
	"reelhouse/internal/notifications"
	"reelhouse/internal/queue"
)

// deliverCallback posts outcome to the job's callback URL. The pending→sent
// transition is claimed before sending so a job reports at most one outcome,
// no matter which of the worker or the stale sweep gets there first.
func (m *Manager) deliverCallback(ctx context.Context, logger *slog.Logger, job *queue.Job, outcome notifications.Outcome) {
	if strings.TrimSpace(job.CallbackURL) == "" {
		return
	}
	claimed, err := m.store.MarkCallback(ctx, job.ID, queue.CallbackPending, queue.CallbackSent)
	if err != nil {
		logger.Error("failed to claim callback delivery",
			logging.Error(err),
			logging.String(logging.FieldEventType, "callback_claim_failed"),
		)
		return
	}
	if !claimed {
		logger.Debug("callback already delivered", logging.String("outcome", string(outcome)))
		return
	}

	if err := m.callbacks.Send(ctx, job.CallbackURL, outcome); err != nil {
		metrics.CallbacksTotal.WithLabelValues(string(outcome), string(queue.CallbackFailed)).Inc()
		if _, markErr := m.store.MarkCallback(ctx, job.ID, queue.CallbackSent, queue.CallbackFailed); markErr != nil {
			logger.Warn("failed to record callback failure", logging.Error(markErr))
		}
		logger.Error("callback delivery failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "callback_failed"),
			logging.String("outcome", string(outcome)),
			logging.String(logging.FieldErrorHint, "callbacks are not retried; resubmit the asset once the receiver is reachable"),
		)
		return
	}
	job.CallbackState = queue.CallbackSent
	metrics.CallbacksTotal.WithLabelValues(string(outcome), string(queue.CallbackSent)).Inc()
	logger.Info("callback delivered",
		logging.String(logging.FieldEventType, "callback_sent"),
		logging.String("outcome", string(outcome)),
	)
}
