package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"reelhouse/internal/config"
	"reelhouse/internal/logging"
	"reelhouse/internal/notifications"
	"reelhouse/internal/queue"
	"reelhouse/internal/stage"
)

// CallbackSender delivers conversion outcomes to callback URLs.
type CallbackSender interface {
	Send(ctx context.Context, url string, outcome notifications.Outcome) error
}

// Manager coordinates queue processing using registered job handlers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	pollInterval time.Duration
	callbacks    CallbackSender
	alerter      notifications.Alerter

	heartbeat *HeartbeatMonitor
	sweeper   *cron.Cron

	handlers  map[queue.Kind]stage.Handler
	lanes     map[queue.Lane]*laneState
	laneOrder []queue.Lane

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Job
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithCallbackSender overrides the webhook sender.
func WithCallbackSender(sender CallbackSender) ManagerOption {
	return func(m *Manager) {
		if sender != nil {
			m.callbacks = sender
		}
	}
}

// WithAlerter overrides the operator alerter.
func WithAlerter(alerter notifications.Alerter) ManagerOption {
	return func(m *Manager) {
		if alerter != nil {
			m.alerter = alerter
		}
	}
}

// NewManager constructs a workflow manager. Handlers are registered with
// ConfigureHandlers before Start.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	pollInterval := time.Duration(cfg.Queue.PollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	m := &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		pollInterval: pollInterval,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Queue.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Queue.HeartbeatTimeout)*time.Second,
		),
		handlers: make(map[queue.Kind]stage.Handler),
		lanes:    make(map[queue.Lane]*laneState),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.callbacks == nil {
		m.callbacks = notifications.NewCallbackSender(cfg, logger)
	}
	if m.alerter == nil {
		m.alerter = notifications.NewAlerter(cfg)
	}
	return m
}

// Close releases the webhook client when the manager owns one.
func (m *Manager) Close() error {
	if closer, ok := m.callbacks.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
