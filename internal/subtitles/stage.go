package subtitles

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"reelhouse/internal/config"
	"reelhouse/internal/deps"
	"reelhouse/internal/logging"
	"reelhouse/internal/queue"
	"reelhouse/internal/services"
	"reelhouse/internal/stage"
)

// Handler runs extract-subtitles and convert-subtitles jobs.
type Handler struct {
	cfg       *config.Config
	extractor *Extractor
	logger    *slog.Logger
}

// NewHandler wraps extractor as a stage handler.
func NewHandler(cfg *config.Config, extractor *Extractor, logger *slog.Logger) *Handler {
	return &Handler{cfg: cfg, extractor: extractor, logger: logging.NewComponentLogger(logger, "subtitles")}
}

// Prepare validates the job input.
func (h *Handler) Prepare(_ context.Context, job *queue.Job) error {
	return stage.RequireInput(stageName, job)
}

// Execute extracts sidecars from a media file, or converts an SRT file (or
// every SRT in a directory) to WebVTT.
func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)
	switch job.Kind {
	case queue.KindExtractSubtitles:
		result, err := h.extractor.Extract(ctx, job.Input)
		if err != nil {
			return err
		}
		logger.Info("subtitle extraction finished",
			logging.String(logging.FieldEventType, "subtitle_extract_finished"),
			logging.Int("tracks", len(result.Tracks)),
		)
		return nil
	case queue.KindConvertSubtitles:
		info, err := os.Stat(job.Input)
		if err != nil {
			return services.Wrap(services.ErrNotFound, stageName, "stat", job.Input, err)
		}
		if info.IsDir() {
			_, err := ConvertDirectory(job.Input, logger)
			return err
		}
		if !strings.EqualFold(filepath.Ext(job.Input), ".srt") {
			return services.Wrap(services.ErrValidation, stageName, "convert", job.Input+" is not an .srt file", nil)
		}
		written, err := ConvertSidecar(job.Input)
		if err != nil {
			return err
		}
		logger.Info("subtitle converted",
			logging.String(logging.FieldEventType, "subtitle_converted"),
			logging.String("vtt", written),
		)
		return nil
	default:
		return services.Wrap(services.ErrValidation, stageName, "execute", "unsupported job kind "+string(job.Kind), nil)
	}
}

// HealthCheck reports whether ffmpeg and ffprobe are installed.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	var required []deps.Requirement
	for _, req := range deps.Requirements(h.cfg) {
		if req.Command == h.cfg.Tools.FFmpeg || req.Command == h.cfg.Tools.FFprobe {
			required = append(required, req)
		}
	}
	return stage.BinaryHealth(stageName, required)
}
