package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"reelhouse/internal/api"
	"reelhouse/internal/config"
	"reelhouse/internal/fileutil"
	"reelhouse/internal/logging"
	"reelhouse/internal/media/ffprobe"
	"reelhouse/internal/metrics"
	"reelhouse/internal/services"
)

// Submitter posts conversion requests to the processing endpoint.
type Submitter interface {
	Convert(ctx context.Context, req api.ConvertRequest) (*api.SubmitResponse, error)
}

// DurationProbe returns the playback duration of a media file.
type DurationProbe func(ctx context.Context, path string) (time.Duration, error)

// Service coordinates asset admission, conversion submission and callbacks.
type Service struct {
	cfg       *config.Config
	store     *Store
	signer    *Signer
	submitter Submitter
	probe     DurationProbe
	logger    *slog.Logger
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithSubmitter overrides the processing endpoint client.
func WithSubmitter(submitter Submitter) ServiceOption {
	return func(s *Service) {
		if submitter != nil {
			s.submitter = submitter
		}
	}
}

// WithDurationProbe overrides how durations are measured.
func WithDurationProbe(probe DurationProbe) ServiceOption {
	return func(s *Service) {
		if probe != nil {
			s.probe = probe
		}
	}
}

// NewService builds a Service. It fails when the callback secret is unusable.
func NewService(cfg *config.Config, store *Store, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	signer, err := NewSigner(cfg.Library.CallbackSecret)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	svc := &Service{
		cfg:       cfg,
		store:     store,
		signer:    signer,
		submitter: api.NewClient(cfg.Library.ProcessingURL, cfg.Paths.APIToken, timeout),
		probe:     ffprobeDuration(cfg.Tools.FFprobe),
		logger:    logging.NewComponentLogger(logger, "library"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

func ffprobeDuration(binary string) DurationProbe {
	return func(ctx context.Context, path string) (time.Duration, error) {
		result, err := ffprobe.Inspect(ctx, binary, path)
		if err != nil {
			return 0, err
		}
		return time.Duration(result.DurationSeconds() * float64(time.Second)), nil
	}
}

// Close releases the submission client.
func (s *Service) Close() error {
	if closer, ok := s.submitter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Store exposes the underlying asset store.
func (s *Service) Store() *Store {
	return s.store
}

// CallbackURL returns the authenticated callback URL for asset.
func (s *Service) CallbackURL(asset *Asset) string {
	query := url.Values{}
	query.Set("id", strconv.FormatInt(asset.ID, 10))
	query.Set("token", s.signer.Token(asset))
	return s.cfg.Paths.PublicURL + "/library/callback?" + query.Encode()
}

// Get returns the asset with id or ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*Asset, error) {
	asset, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, services.Wrap(services.ErrNotFound, "library", "get", fmt.Sprintf("asset %d", id), nil)
	}
	return asset, nil
}

// List returns every asset.
func (s *Service) List(ctx context.Context) ([]*Asset, error) {
	return s.store.List(ctx)
}

// HandleCallback applies a conversion outcome reported for asset id. A
// callback for an asset that no longer exists is accepted without effect.
func (s *Service) HandleCallback(ctx context.Context, id int64, token, status string) error {
	logger := logging.WithContext(ctx, s.logger).With(logging.Int64(logging.FieldAssetID, id))
	asset, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if asset == nil {
		metrics.CallbacksReceived.WithLabelValues("missing").Inc()
		logger.Info("callback for deleted asset ignored",
			logging.String(logging.FieldEventType, "callback_asset_missing"),
			logging.String("status", status),
		)
		return nil
	}
	if !s.signer.Verify(asset, token) {
		metrics.CallbacksReceived.WithLabelValues("forbidden").Inc()
		logging.WarnWithContext(logger, "callback rejected", "callback_forbidden",
			logging.String(logging.FieldErrorHint, "token does not match the asset"),
		)
		return services.Wrap(services.ErrForbidden, "library", "callback", "invalid token", nil)
	}
	target, ok := CallbackStatus(status)
	if !ok {
		metrics.CallbacksReceived.WithLabelValues("invalid").Inc()
		return services.Wrap(services.ErrValidation, "library", "callback", fmt.Sprintf("unknown status %q", status), nil)
	}
	// Only an in-flight conversion accepts an outcome. Repeating the outcome
	// already recorded is harmless.
	applied, err := s.store.TransitionStatus(ctx, id, target, StatusConverting, target)
	if err != nil {
		return err
	}
	if !applied {
		metrics.CallbacksReceived.WithLabelValues("ignored").Inc()
		logging.WarnWithContext(logger, "callback ignored", "callback_not_converting",
			logging.String("status", string(target)),
			logging.String("current", string(asset.Status)),
			logging.String(logging.FieldErrorHint, "no conversion was in flight for this asset"),
		)
		return nil
	}
	metrics.CallbacksReceived.WithLabelValues("applied").Inc()
	logger.Info("conversion status updated",
		logging.String(logging.FieldEventType, "asset_status_updated"),
		logging.String("from", string(asset.Status)),
		logging.String("to", string(target)),
	)
	return nil
}

// Submit moves an asset to converting and posts its original to the
// processing endpoint. An asset already converting yields ErrConflict. When
// the post fails the previous status is restored.
func (s *Service) Submit(ctx context.Context, id int64, tier string) (*Asset, error) {
	if tier != "" && tier != string(ArtifactSmall) && tier != string(ArtifactLarge) {
		return nil, services.Wrap(services.ErrValidation, "library", "submit", fmt.Sprintf("unknown tier %q", tier), nil)
	}
	asset, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	logger := logging.WithContext(ctx, s.logger).With(logging.Int64(logging.FieldAssetID, id))
	original := asset.ArtifactPath(ArtifactOriginal)
	exists, err := fileutil.Exists(original)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "library", "submit", original, err)
	}
	if !exists {
		return nil, services.Wrap(services.ErrNotFound, "library", "submit", "original missing: "+original, nil)
	}

	previous := asset.Status
	claimed, err := s.store.TransitionStatus(ctx, id, StatusConverting, StatusNotConverted, StatusConversionFailed, StatusConverted)
	if err != nil {
		return nil, err
	}
	if !claimed {
		metrics.SubmissionsTotal.WithLabelValues("conflict").Inc()
		return nil, services.Wrap(services.ErrConflict, "library", "submit", fmt.Sprintf("asset %d is already converting", id), nil)
	}

	// Paths are relative to the library directory; the processing endpoint
	// resolves them against its own.
	resp, err := s.submitter.Convert(ctx, api.ConvertRequest{
		Input:       asset.ArtifactName(ArtifactOriginal),
		Output:      asset.ArtifactName(OutputKind(tier)),
		CallbackURL: s.CallbackURL(asset),
		Tier:        tier,
	})
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("failed").Inc()
		if _, revertErr := s.store.TransitionStatus(context.WithoutCancel(ctx), id, previous, StatusConverting); revertErr != nil {
			err = errors.Join(err, fmt.Errorf("restore status: %w", revertErr))
		}
		logging.ErrorWithContext(logger, "conversion submission failed", "asset_submit_failed",
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldErrorHint, "check that the processing endpoint is reachable, then resubmit"),
			logging.Error(err),
		)
		return nil, fmt.Errorf("submit asset %d: %w", id, err)
	}
	metrics.SubmissionsTotal.WithLabelValues("submitted").Inc()
	logger.Info("asset submitted for conversion",
		logging.String(logging.FieldEventType, "asset_submitted"),
		logging.Int64(logging.FieldJobID, resp.Job.ID),
		logging.String("tier", tier),
	)
	return s.Get(ctx, id)
}

// RefreshDuration probes the best available artifact of an asset and stores
// its duration truncated to whole seconds.
func (s *Service) RefreshDuration(ctx context.Context, id int64) (*Asset, error) {
	asset, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var source string
	for _, kind := range []ArtifactKind{ArtifactConverted, ArtifactLarge, ArtifactSmall, ArtifactOriginal} {
		path := asset.ArtifactPath(kind)
		exists, err := fileutil.Exists(path)
		if err != nil {
			return nil, services.Wrap(services.ErrProbe, "library", "duration", path, err)
		}
		if exists {
			source = path
			break
		}
	}
	if source == "" {
		return nil, services.Wrap(services.ErrNotFound, "library", "duration", fmt.Sprintf("asset %d has no media file", id), nil)
	}
	duration, err := s.probe(ctx, source)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetDuration(ctx, id, duration); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}
