package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"resty.dev/v3"

	"reelhouse/internal/config"
	"reelhouse/internal/logging"
	"reelhouse/internal/services"
)

const userAgent = "reelhouse/1.0"

// Outcome is the conversion status reported to a callback URL.
type Outcome string

const (
	OutcomeConverted        Outcome = "converted"
	OutcomeConversionFailed Outcome = "conversion-failed"
)

// CallbackPayload is the webhook request body.
type CallbackPayload struct {
	Status Outcome `json:"status"`
}

// CallbackSender posts conversion outcomes to callback URLs.
type CallbackSender struct {
	client *resty.Client
	logger *slog.Logger
}

// NewCallbackSender builds a sender using the configured request timeout.
func NewCallbackSender(cfg *config.Config, logger *slog.Logger) *CallbackSender {
	return &CallbackSender{
		client: newClient(cfg),
		logger: logging.NewComponentLogger(logger, "callback"),
	}
}

func newClient(cfg *config.Config) *resty.Client {
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", userAgent)
	return client
}

// Close releases the underlying HTTP client.
func (s *CallbackSender) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Send posts outcome to url. Transport errors and non-2xx responses are
// reported as services.ErrConnection.
func (s *CallbackSender) Send(ctx context.Context, url string, outcome Outcome) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return services.Wrap(services.ErrValidation, "callback", "send", "callback url is empty", nil)
	}
	logger := logging.WithContext(ctx, s.logger)

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(CallbackPayload{Status: outcome}).
		Post(url)
	if err != nil {
		logger.Warn("callback delivery failed",
			logging.String(logging.FieldEventType, "callback_failed"),
			logging.String("status", string(outcome)),
			logging.Error(err),
		)
		return services.Wrap(services.ErrConnection, "callback", "post", url, err)
	}
	if resp.IsError() {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode())
		logger.Warn("callback rejected",
			logging.String(logging.FieldEventType, "callback_rejected"),
			logging.String("status", string(outcome)),
			logging.Int("http_status", resp.StatusCode()),
		)
		return services.WithOutput(services.Wrap(services.ErrConnection, "callback", "post", url, err), resp.String())
	}
	logger.Info("callback delivered",
		logging.String(logging.FieldEventType, "callback_delivered"),
		logging.String("status", string(outcome)),
		logging.Int("http_status", resp.StatusCode()),
	)
	return nil
}
