package notifications_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"reelhouse/internal/config"
	"reelhouse/internal/logging"
	"reelhouse/internal/notifications"
	"reelhouse/internal/services"
)

func TestCallbackSenderPostsStatus(t *testing.T) {
	var received notifications.CallbackPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	cfg := config.Default()
	sender := notifications.NewCallbackSender(&cfg, logging.NewNop())
	defer sender.Close()
	if err := sender.Send(context.Background(), server.URL+"/library/callback?id=1&token=x", notifications.OutcomeConverted); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if received.Status != notifications.OutcomeConverted {
		t.Fatalf("received status %q", received.Status)
	}
}

func TestCallbackSenderReportsConnectionErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	cfg := config.Default()
	sender := notifications.NewCallbackSender(&cfg, logging.NewNop())
	defer sender.Close()

	err := sender.Send(context.Background(), server.URL, notifications.OutcomeConversionFailed)
	if !errors.Is(err, services.ErrConnection) {
		t.Fatalf("expected ErrConnection for 403, got %v", err)
	}

	server.Close()
	err = sender.Send(context.Background(), server.URL, notifications.OutcomeConversionFailed)
	if !errors.Is(err, services.ErrConnection) {
		t.Fatalf("expected ErrConnection for closed server, got %v", err)
	}
}

func TestNewAlerterNoopWithoutTopic(t *testing.T) {
	cfg := config.Default()
	alerter := notifications.NewAlerter(&cfg)
	if err := alerter.JobFailed(context.Background(), "convert", "movie.mkv", errors.New("boom")); err != nil {
		t.Fatalf("noop alerter returned %v", err)
	}
}

func TestNtfyAlerterFormatsJobFailure(t *testing.T) {
	var (
		body    string
		headers http.Header
		path    string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		headers = r.Header.Clone()
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyURL = server.URL
	cfg.Notifications.NtfyTopic = "reelhouse-alerts"
	alerter := notifications.NewAlerter(&cfg)
	jobErr := services.Wrap(services.ErrEncode, "transcode", "ffmpeg", "movie.mkv", errors.New("exit status 1"))
	if err := alerter.JobFailed(context.Background(), "convert", "movie.mkv", jobErr); err != nil {
		t.Fatalf("JobFailed: %v", err)
	}
	if path != "/reelhouse-alerts" {
		t.Fatalf("path = %s", path)
	}
	if headers.Get("Title") != "Reelhouse - Job Failed" || headers.Get("Priority") != "high" {
		t.Fatalf("headers = %v", headers)
	}
	if !strings.Contains(body, "convert failed for movie.mkv") || !strings.Contains(body, "encode error") {
		t.Fatalf("body = %q", body)
	}
}
