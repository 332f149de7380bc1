package library

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"reelhouse/internal/fileutil"
	"reelhouse/internal/logging"
	"reelhouse/internal/services"
)

const scanTimeout = 5 * time.Minute

// ScanAndSubmit submits every not-converted asset whose original exists and
// whose converted artifact does not. It returns the number submitted.
// Submission failures are logged and the scan continues.
func (s *Service) ScanAndSubmit(ctx context.Context) (int, error) {
	assets, err := s.store.List(ctx, StatusNotConverted)
	if err != nil {
		return 0, err
	}
	submitted := 0
	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			return submitted, err
		}
		hasOriginal, err := fileutil.Exists(asset.ArtifactPath(ArtifactOriginal))
		if err != nil || !hasOriginal {
			continue
		}
		hasConverted, err := fileutil.Exists(asset.ArtifactPath(ArtifactConverted))
		if err != nil || hasConverted {
			continue
		}
		if _, err := s.Submit(ctx, asset.ID, ""); err != nil {
			if errors.Is(err, services.ErrConflict) {
				continue
			}
			logging.WarnWithContext(s.logger, "auto-convert submission failed", "auto_convert_failed",
				logging.Int64(logging.FieldAssetID, asset.ID),
				logging.Error(err),
			)
			continue
		}
		submitted++
	}
	return submitted, nil
}

// AutoConverter runs ScanAndSubmit on a cron schedule.
type AutoConverter struct {
	svc      *Service
	schedule string
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
	busy sync.Mutex
}

// NewAutoConverter validates schedule and returns a stopped scheduler.
func NewAutoConverter(svc *Service, schedule string, logger *slog.Logger) (*AutoConverter, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "library", "auto-convert", "invalid schedule "+schedule, err)
	}
	return &AutoConverter{
		svc:      svc,
		schedule: schedule,
		logger:   logging.NewComponentLogger(logger, "auto-convert"),
	}, nil
}

// Start begins scheduled scans.
func (a *AutoConverter) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(a.schedule, a.RunOnce); err != nil {
		return services.Wrap(services.ErrConfiguration, "library", "auto-convert", "invalid schedule "+a.schedule, err)
	}
	c.Start()
	a.cron = c
	a.logger.Info("auto-convert scheduled",
		logging.String(logging.FieldEventType, "auto_convert_scheduled"),
		logging.String("schedule", a.schedule),
	)
	return nil
}

// Stop halts the schedule and waits for a running scan to finish.
func (a *AutoConverter) Stop() {
	a.mu.Lock()
	c := a.cron
	a.cron = nil
	a.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// RunOnce performs a single scan unless one is already in progress.
func (a *AutoConverter) RunOnce() {
	if !a.busy.TryLock() {
		return
	}
	defer a.busy.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()
	submitted, err := a.svc.ScanAndSubmit(ctx)
	if err != nil {
		logging.WarnWithContext(a.logger, "auto-convert scan failed", "auto_convert_scan_failed", logging.Error(err))
		return
	}
	if submitted > 0 {
		a.logger.Info("auto-convert submitted assets",
			logging.String(logging.FieldEventType, "auto_convert_submitted"),
			logging.Int("submitted", submitted),
		)
	}
}
