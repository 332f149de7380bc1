package notifications

import (
	"context"
	"fmt"
	"strings"

	"resty.dev/v3"

	"reelhouse/internal/config"
	"reelhouse/internal/services"
)

// Alerter pushes operator alerts.
type Alerter interface {
	JobFailed(ctx context.Context, kind, input string, err error) error
	Test(ctx context.Context) error
}

// NewAlerter returns an ntfy-backed alerter, or a no-op when no topic is set.
func NewAlerter(cfg *config.Config) Alerter {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopAlerter{}
	}
	endpoint := topic
	if !strings.Contains(topic, "://") {
		endpoint = strings.TrimRight(cfg.Notifications.NtfyURL, "/") + "/" + topic
	}
	return &ntfyAlerter{endpoint: endpoint, client: newClient(cfg)}
}

type noopAlerter struct{}

func (noopAlerter) JobFailed(context.Context, string, string, error) error { return nil }

func (noopAlerter) Test(context.Context) error { return nil }

type ntfyAlerter struct {
	endpoint string
	client   *resty.Client
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

func (n *ntfyAlerter) JobFailed(ctx context.Context, kind, input string, err error) error {
	detail := "unknown error"
	if err != nil {
		detail = services.Details(err)
	}
	return n.send(ctx, payload{
		title:    "Reelhouse - Job Failed",
		message:  fmt.Sprintf("%s failed for %s\n%s", kind, input, detail),
		tags:     []string{"reelhouse", "job", "failed"},
		priority: "high",
	})
}

func (n *ntfyAlerter) Test(ctx context.Context) error {
	return n.send(ctx, payload{
		title:   "Reelhouse - Test",
		message: "Notifications are configured correctly.",
		tags:    []string{"reelhouse", "test"},
	})
}

func (n *ntfyAlerter) send(ctx context.Context, data payload) error {
	req := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/plain; charset=utf-8").
		SetBody(data.message)
	if data.title != "" {
		req.SetHeader("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.SetHeader("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.SetHeader("Priority", data.priority)
	}
	resp, err := req.Post(n.endpoint)
	if err != nil {
		return services.Wrap(services.ErrConnection, "notifications", "ntfy", n.endpoint, err)
	}
	if resp.IsError() {
		return services.WithOutput(
			services.Wrap(services.ErrConnection, "notifications", "ntfy", fmt.Sprintf("unexpected status %d", resp.StatusCode()), nil),
			resp.String(),
		)
	}
	return nil
}
