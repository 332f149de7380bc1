package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"reelhouse/internal/config"
	"reelhouse/internal/daemon"
	"reelhouse/internal/deps"
	"reelhouse/internal/library"
	"reelhouse/internal/logging"
	"reelhouse/internal/media/ffprobe"
	"reelhouse/internal/notifications"
	"reelhouse/internal/preflight"
	"reelhouse/internal/queue"
	"reelhouse/internal/subtitles"
	"reelhouse/internal/transcode"
	"reelhouse/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the reelhouse daemon and blocks until cmdCtx is cancelled or the
// process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logPath := filepath.Join(cfg.Paths.LogDir, "reelhoused.log")
	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
		Color:            true,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	logPreflight(signalCtx, logger, cfg)
	pidPath := PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	libStore, err := library.Open(cfg)
	if err != nil {
		logger.Error("open library store", logging.Error(err))
		return err
	}
	lib, err := library.NewService(cfg, libStore, logger)
	if err != nil {
		_ = libStore.Close()
		return fmt.Errorf("create library service: %w", err)
	}

	manager := workflow.NewManager(cfg, store, logger,
		workflow.WithAlerter(notifications.NewAlerter(cfg)),
	)
	manager.ConfigureHandlers(Handlers(cfg, logger))

	d, err := daemon.New(cfg, store, lib, manager, logger)
	if err != nil {
		_ = manager.Close()
		_ = lib.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the api bind address and that no other reelhoused holds the lock"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("reelhouse daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// Handlers builds the production job handlers. The conversion and subtitle
// lanes share one inspector so a file probed for one job is not probed again
// for its related job.
func Handlers(cfg *config.Config, logger *slog.Logger) workflow.HandlerSet {
	inspector := ffprobe.NewInspector(cfg.Tools.FFprobe, cfg.Tools.MediaInfo,
		ffprobe.WithDefaultLanguage(cfg.Subtitles.DefaultLanguage),
	)
	extractor := subtitles.NewExtractor(cfg, inspector, logger)
	subtitleHandler := subtitles.NewHandler(cfg, extractor, logger)
	return workflow.HandlerSet{
		Convert:          transcode.NewHandler(cfg, transcode.NewFromConfig(cfg, inspector, logger), logger),
		ExtractSubtitles: subtitleHandler,
		ConvertSubtitles: subtitleHandler,
	}
}

// PIDPath returns the pid file the daemon writes while running.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.StateDir, "reelhoused.pid")
}

// ReadPID returns the pid recorded by a running daemon.
func ReadPID(cfg *config.Config) (int, error) {
	data, err := os.ReadFile(PIDPath(cfg))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file: %w", err)
	}
	return pid, nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("api_token_set", cfg.Paths.APIToken != ""),
		logging.Bool("auto_convert", cfg.Library.AutoConvert),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		key := strings.ToLower(status.Name)
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "jobs touching this resource will fail until it is fixed"),
		)
	}
}
