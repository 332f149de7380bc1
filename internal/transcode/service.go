package transcode

import (
	"context"
	"log/slog"

	"reelhouse/internal/config"
	"reelhouse/internal/logging"
	"reelhouse/internal/media/ffprobe"
	"reelhouse/internal/metrics"
)

// Inspector is the subset of ffprobe.Inspector used by Transcoder.
type Inspector interface {
	Inspect(ctx context.Context, path string) (ffprobe.Inspection, error)
	Forget(path string)
}

// Transcoder inspects, plans and executes a single conversion.
type Transcoder struct {
	inspector Inspector
	executor  *Executor
	limits    Limits
	logger    *slog.Logger
}

// NewTranscoder wires an inspector and executor with the given limits.
func NewTranscoder(inspector Inspector, executor *Executor, limits Limits, logger *slog.Logger) *Transcoder {
	return &Transcoder{
		inspector: inspector,
		executor:  executor,
		limits:    limits,
		logger:    logging.NewComponentLogger(logger, "transcode"),
	}
}

// NewFromConfig builds a Transcoder for the configured active tier.
func NewFromConfig(cfg *config.Config, inspector Inspector, logger *slog.Logger, opts ...ExecutorOption) *Transcoder {
	return NewTranscoder(inspector, NewExecutor(SettingsFromConfig(cfg), logger, opts...), LimitsFromConfig(cfg, ""), logger)
}

// WithLimits returns a copy of t that plans against limits.
func (t *Transcoder) WithLimits(limits Limits) *Transcoder {
	clone := *t
	clone.limits = limits
	return &clone
}

// Convert produces output from input and returns the decision that was applied.
func (t *Transcoder) Convert(ctx context.Context, input, output string) (Decision, error) {
	inspection, err := t.inspector.Inspect(ctx, input)
	if err != nil {
		return Decision{}, err
	}
	decision := Plan(inspection.Metadata, inspection.Streamable, t.limits)
	metrics.TranscodeDecisions.WithLabelValues(string(decision.Strategy)).Inc()
	if err := t.executor.Execute(ctx, decision, input, output); err != nil {
		return decision, err
	}
	t.inspector.Forget(output)
	if decision.Strategy == StrategyRepackage {
		t.inspector.Forget(input)
	}
	return decision, nil
}
