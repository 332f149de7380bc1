package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"reelhouse/internal/config"
	"reelhouse/internal/fileutil"
	"reelhouse/internal/logging"
	"reelhouse/internal/services"
)

const stageName = "transcode"

// CommandRunner executes an external command and returns its captured stderr.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}

// Settings holds the encoder knobs that do not depend on the input.
type Settings struct {
	FFmpeg          string
	Preset          string
	AudioBitrate    string
	AudioSampleRate int
}

// SettingsFromConfig extracts executor settings from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		FFmpeg:          cfg.Tools.FFmpeg,
		Preset:          cfg.Transcode.Preset,
		AudioBitrate:    cfg.Transcode.AudioBitrate,
		AudioSampleRate: cfg.Transcode.AudioSampleRate,
	}
}

// Executor carries out transcode decisions.
type Executor struct {
	settings Settings
	logger   *slog.Logger
	run      CommandRunner
}

// ExecutorOption customises an Executor.
type ExecutorOption func(*Executor)

// WithCommandRunner overrides the ffmpeg runner (primarily for tests).
func WithCommandRunner(run CommandRunner) ExecutorOption {
	return func(e *Executor) {
		if run != nil {
			e.run = run
		}
	}
}

// NewExecutor constructs an Executor.
func NewExecutor(settings Settings, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	if settings.FFmpeg == "" {
		settings.FFmpeg = "ffmpeg"
	}
	if settings.Preset == "" {
		settings.Preset = "slow"
	}
	if settings.AudioBitrate == "" {
		settings.AudioBitrate = "128k"
	}
	if settings.AudioSampleRate <= 0 {
		settings.AudioSampleRate = 48000
	}
	e := &Executor{
		settings: settings,
		logger:   logging.NewComponentLogger(logger, "transcode"),
		run:      execRunner,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TempPath returns the in-progress path used while producing output.
func TempPath(output string) string {
	dir := filepath.Dir(output)
	stem := strings.TrimSuffix(filepath.Base(output), filepath.Ext(output))
	for _, suffix := range []string{".converted", ".small", ".large"} {
		if strings.HasSuffix(stem, suffix) {
			stem = strings.TrimSuffix(stem, suffix)
			break
		}
	}
	return filepath.Join(dir, stem+".converting.mp4")
}

// Execute applies decision to input, producing output.
func (e *Executor) Execute(ctx context.Context, decision Decision, input, output string) error {
	if strings.TrimSpace(input) == "" || strings.TrimSpace(output) == "" {
		return services.Wrap(services.ErrValidation, stageName, "execute", "input and output are required", nil)
	}
	logger := logging.WithContext(ctx, e.logger)
	attrs := append(logging.DecisionAttrs("transcode_strategy", string(decision.Strategy), decision.Reason()),
		logging.String(logging.FieldEventType, "transcode_decision"),
		logging.String("input", input),
		logging.String("output", output),
		logging.String("format", decision.FormatName),
		logging.Int64("bitrate", decision.BitRate),
		logging.Int("height", decision.Height),
		logging.Bool("streamable", decision.Streamable),
		logging.Bool("copy_video", decision.CopyVideo),
		logging.Bool("copy_audio", decision.CopyAudio),
	)
	logger.Info("transcode decision", logging.Args(attrs...)...)

	samePath := filepath.Clean(input) == filepath.Clean(output)
	switch decision.Strategy {
	case StrategyPassthrough:
		if samePath {
			return nil
		}
		if err := fileutil.ReplaceLink(input, output); err != nil {
			return services.Wrap(services.ErrEncode, stageName, "link", "passthrough link failed", err)
		}
		return nil
	case StrategyRepackage:
		if err := e.encode(ctx, input, output, buildRepackageArgs(input, TempPath(output))); err != nil {
			return err
		}
		if samePath {
			return nil
		}
		if err := fileutil.ReplaceLink(output, input); err != nil {
			return services.Wrap(services.ErrEncode, stageName, "link", "replace original with repackaged file", err)
		}
		logger.Info("original replaced with repackaged file",
			logging.String(logging.FieldEventType, "original_replaced"),
			logging.String("input", input),
		)
		return nil
	case StrategyReencode:
		return e.encode(ctx, input, output, buildReencodeArgs(decision, e.settings, input, TempPath(output)))
	default:
		return services.Wrap(services.ErrValidation, stageName, "execute", fmt.Sprintf("unknown strategy %q", decision.Strategy), nil)
	}
}

func (e *Executor) encode(ctx context.Context, input, output string, args []string) error {
	temp := TempPath(output)
	if _, err := fileutil.RemoveIfExists(temp); err != nil {
		return services.Wrap(services.ErrEncode, stageName, "cleanup", "remove stale temp file", err)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return services.Wrap(services.ErrEncode, stageName, "prepare", "create output directory", err)
	}

	stderr, err := e.run(ctx, e.settings.FFmpeg, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return services.Wrap(services.ErrTimeout, stageName, "ffmpeg", input, errors.Join(ctxErr, err))
		}
		wrapped := services.WithOutput(services.Wrap(services.ErrEncode, stageName, "ffmpeg", input, err), string(stderr))
		logging.WithContext(ctx, e.logger).Error("ffmpeg failed",
			logging.String(logging.FieldEventType, "ffmpeg_failed"),
			logging.String(logging.FieldErrorKind, services.Kind(wrapped)),
			logging.String("input", input),
			logging.String("stderr", strings.TrimSpace(string(stderr))),
			logging.Error(err),
		)
		return wrapped
	}

	if err := os.Rename(temp, output); err != nil {
		return services.Wrap(services.ErrEncode, stageName, "finalize", "rename temp output", err)
	}
	return nil
}

func buildRepackageArgs(input, temp string) []string {
	return []string{
		"-hide_banner",
		"-i", input,
		"-map", "0",
		"-c", "copy",
		"-movflags", "+faststart",
		"-strict", "-2",
		"-loglevel", "warning",
		"-f", "mp4",
		"-y", temp,
	}
}

func buildReencodeArgs(decision Decision, settings Settings, input, temp string) []string {
	args := []string{"-hide_banner", "-i", input}
	if decision.VideoIndex >= 0 {
		args = append(args, "-map", "0:"+strconv.Itoa(decision.VideoIndex))
	}
	args = append(args, "-map", "0:a?")
	for _, index := range decision.SubtitleStreams {
		args = append(args, "-map", "0:"+strconv.Itoa(index))
	}

	switch {
	case decision.VideoIndex < 0:
		args = append(args, "-vn")
	case decision.CopyVideo:
		args = append(args, "-c:v", "copy")
	default:
		ceiling := decision.VideoBitRate
		if ceiling <= 0 {
			ceiling = decision.Limits.BitRate
		}
		peak := ceiling + ceiling/2
		args = append(args,
			"-c:v", "libx264",
			"-profile:v", "high",
			"-preset", settings.Preset,
		)
		if ceiling > 0 {
			args = append(args,
				"-b:v", strconv.FormatInt(ceiling, 10),
				"-maxrate", strconv.FormatInt(peak, 10),
				"-bufsize", strconv.FormatInt(peak, 10),
			)
		}
		if decision.Limits.Height > 0 {
			args = append(args, "-vf", fmt.Sprintf("scale=-2:'min(%d,ih)'", decision.Limits.Height))
		}
		args = append(args, "-fps_mode", "cfr")
	}

	if decision.CopyAudio {
		args = append(args, "-c:a", "copy")
	} else {
		args = append(args,
			"-c:a", "aac",
			"-b:a", settings.AudioBitrate,
			"-ac", "2",
			"-ar", strconv.Itoa(settings.AudioSampleRate),
			"-af", "aresample=async=1",
		)
	}
	if len(decision.SubtitleStreams) > 0 {
		args = append(args, "-c:s", "mov_text")
	}

	return append(args,
		"-movflags", "+faststart",
		"-threads", "0",
		"-loglevel", "warning",
		"-f", "mp4",
		"-y", temp,
	)
}
