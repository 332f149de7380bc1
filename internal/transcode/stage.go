package transcode

import (
	"context"
	"log/slog"
	"strings"

	"reelhouse/internal/config"
	"reelhouse/internal/deps"
	"reelhouse/internal/logging"
	"reelhouse/internal/queue"
	"reelhouse/internal/services"
	"reelhouse/internal/stage"
)

// Handler runs convert jobs for the workflow manager.
type Handler struct {
	cfg        *config.Config
	transcoder *Transcoder
	logger     *slog.Logger
}

// NewHandler wraps transcoder as a stage handler.
func NewHandler(cfg *config.Config, transcoder *Transcoder, logger *slog.Logger) *Handler {
	return &Handler{cfg: cfg, transcoder: transcoder, logger: logging.NewComponentLogger(logger, "transcode")}
}

// Prepare validates the job paths.
func (h *Handler) Prepare(_ context.Context, job *queue.Job) error {
	if err := stage.RequireInput(stageName, job); err != nil {
		return err
	}
	if strings.TrimSpace(job.Output) == "" {
		return services.Wrap(services.ErrValidation, stageName, "prepare", "job has no output path", nil)
	}
	return nil
}

// Execute converts the job input to its output.
func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	transcoder := h.transcoder
	if job.Tier != "" {
		transcoder = transcoder.WithLimits(LimitsFromConfig(h.cfg, job.Tier))
	}
	decision, err := transcoder.Convert(ctx, job.Input, job.Output)
	if err != nil {
		return err
	}
	logging.WithContext(ctx, h.logger).Info("conversion finished",
		logging.String(logging.FieldEventType, "conversion_finished"),
		logging.String("strategy", string(decision.Strategy)),
		logging.String("output", job.Output),
	)
	return nil
}

// HealthCheck reports whether the media tools are installed.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	return stage.BinaryHealth(stageName, deps.Requirements(h.cfg))
}
