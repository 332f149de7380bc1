package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"reelhouse/internal/config"
	"reelhouse/internal/deps"
	"reelhouse/internal/library"
	"reelhouse/internal/logging"
	"reelhouse/internal/queue"
	"reelhouse/internal/workflow"
)

// Daemon holds the configuration, stores and services shared by every HTTP
// handler and owns the process lifecycle.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	library  *library.Service
	workflow *workflow.Manager
	auto     *library.AutoConverter

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	server  *apiServer
	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LibraryDB    string
	LockFilePath string
	Dependencies []deps.Status
}

// New constructs a daemon. The workflow manager must already have its
// handlers configured.
func New(cfg *config.Config, store *queue.Store, lib *library.Service, wf *workflow.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || lib == nil || wf == nil {
		return nil, errors.New("daemon requires config, queue store, library service, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		library:  lib,
		workflow: wf,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	if cfg.Library.AutoConvert {
		auto, err := library.NewAutoConverter(lib, cfg.Library.AutoConvertSchedule, logger)
		if err != nil {
			return nil, err
		}
		d.auto = auto
	}
	return d, nil
}

// Start acquires the single-instance lock, starts the lane workers and the
// auto-convert schedule, and begins serving the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reelhoused instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if d.auto != nil {
		if err := d.auto.Start(); err != nil {
			d.workflow.Stop()
			cancel()
			_ = d.lock.Unlock()
			return fmt.Errorf("start auto-convert: %w", err)
		}
	}
	server, err := newAPIServer(d.cfg.Paths.APIBind, d.Handler(), d.logger)
	if err != nil {
		d.stopBackground()
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	if err := server.start(); err != nil {
		d.stopBackground()
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.server = server
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("reelhoused started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("address", server.addr()),
	)
	return nil
}

func (d *Daemon) stopBackground() {
	if d.auto != nil {
		d.auto.Stop()
	}
	d.workflow.Stop()
}

// Stop stops serving, halts the workers and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	d.server.stop()
	d.server = nil
	d.stopBackground()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("reelhoused stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases the services it owns.
func (d *Daemon) Close() error {
	d.Stop()
	return errors.Join(d.workflow.Close(), d.library.Close())
}

// Addr returns the address the API listens on, or "" when stopped.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.server == nil {
		return ""
	}
	return d.server.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		QueueDBPath:  d.store.Path(),
		LibraryDB:    d.library.Store().Path(),
		LockFilePath: d.lockPath,
		Dependencies: deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
}

// Handler returns the HTTP API router.
func (d *Daemon) Handler() http.Handler {
	return newRouter(d)
}
