package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"resty.dev/v3"

	"reelhouse/internal/services"
)

const clientUserAgent = "reelhouse-client/1.0"

// Client calls a reelhoused HTTP API.
type Client struct {
	baseURL string
	http    *resty.Client
}

// NewClient builds a client for baseURL. A blank token sends no
// Authorization header.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", clientUserAgent)
	client.SetHeader("Accept", "application/json")
	if token = strings.TrimSpace(token); token != "" {
		client.SetAuthToken(token)
	}
	return &Client{baseURL: baseURL, http: client}
}

// BaseURL returns the daemon address the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

// Convert submits a conversion.
func (c *Client) Convert(ctx context.Context, req ConvertRequest) (*SubmitResponse, error) {
	var out SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/convert", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExtractSubtitles submits a subtitle extraction for a media file.
func (c *Client) ExtractSubtitles(ctx context.Context, input string) (*SubmitResponse, error) {
	var out SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/extractSubtitles", InputRequest{Input: input}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConvertSubtitles submits an SRT file or directory for WebVTT conversion.
func (c *Client) ConvertSubtitles(ctx context.Context, input string) (*SubmitResponse, error) {
	var out SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/convertSubtitles", InputRequest{Input: input}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Jobs lists jobs, optionally filtered by lane and status.
func (c *Client) Jobs(ctx context.Context, lane, status string, limit int) ([]Job, error) {
	query := make([]string, 0, 3)
	if lane != "" {
		query = append(query, "lane="+lane)
	}
	if status != "" {
		query = append(query, "status="+status)
	}
	if limit > 0 {
		query = append(query, "limit="+strconv.Itoa(limit))
	}
	path := "/jobs"
	if len(query) > 0 {
		path += "?" + strings.Join(query, "&")
	}
	var out JobListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// Job fetches one job.
func (c *Client) Job(ctx context.Context, id int64) (*Job, error) {
	var out JobResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/jobs/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out.Job, nil
}

// PruneJobs removes terminal jobs that finished more than olderThan ago.
func (c *Client) PruneJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	var out PruneResponse
	path := "/jobs/prune?olderThan=" + olderThan.String()
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

// Assets lists library assets.
func (c *Client) Assets(ctx context.Context) ([]Asset, error) {
	var out AssetListResponse
	if err := c.do(ctx, http.MethodGet, "/library/assets", nil, &out); err != nil {
		return nil, err
	}
	return out.Assets, nil
}

// Asset fetches one asset.
func (c *Client) Asset(ctx context.Context, id int64) (*Asset, error) {
	var out AssetResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/library/assets/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out.Asset, nil
}

// AdmitAsset admits a triage file into the library.
func (c *Client) AdmitAsset(ctx context.Context, req AdmitRequest) (*Asset, error) {
	var out AssetResponse
	if err := c.do(ctx, http.MethodPost, "/library/assets", req, &out); err != nil {
		return nil, err
	}
	return &out.Asset, nil
}

// ConvertAsset submits an asset for conversion.
func (c *Client) ConvertAsset(ctx context.Context, id int64, tier string) (*Asset, error) {
	var out AssetResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/library/assets/%d/convert", id), AssetConvertRequest{Tier: tier}, &out); err != nil {
		return nil, err
	}
	return &out.Asset, nil
}

// RefreshDuration re-probes the asset duration.
func (c *Client) RefreshDuration(ctx context.Context, id int64) (*Asset, error) {
	var out AssetResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/library/assets/%d/duration", id), nil, &out); err != nil {
		return nil, err
	}
	return &out.Asset, nil
}

// DeleteAsset removes an asset and its files.
func (c *Client) DeleteAsset(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/library/assets/%d", id), nil, nil)
}

// Untriaged lists triage files not yet admitted.
func (c *Client) Untriaged(ctx context.Context) ([]string, error) {
	var out UntriagedResponse
	if err := c.do(ctx, http.MethodGet, "/library/triage", nil, &out); err != nil {
		return nil, err
	}
	return out.Videos, nil
}

// Health fetches daemon health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var apiErr ErrorResponse
	req := c.http.R().SetContext(ctx).SetError(&apiErr)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return services.Wrap(services.ErrConnection, "api", strings.ToLower(method), c.baseURL+path, err)
	}
	if !resp.IsError() {
		return nil
	}
	message := strings.TrimSpace(apiErr.Error)
	if message == "" {
		message = strings.TrimSpace(resp.String())
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode())
	}
	return services.Wrap(MarkerForStatus(resp.StatusCode()), "api", strings.ToLower(method)+" "+path, message, nil)
}

// MarkerForStatus maps an HTTP status code onto a services error marker.
func MarkerForStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return services.ErrValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return services.ErrForbidden
	case http.StatusNotFound:
		return services.ErrNotFound
	case http.StatusConflict:
		return services.ErrConflict
	default:
		return services.ErrConnection
	}
}

// StatusForError maps an error onto the HTTP status code the daemon replies with.
func StatusForError(err error) int {
	switch services.Kind(err) {
	case "validation":
		return http.StatusBadRequest
	case "forbidden":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "conflict":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
