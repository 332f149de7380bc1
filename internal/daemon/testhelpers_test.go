package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"reelhouse/internal/api"
	"reelhouse/internal/config"
	"reelhouse/internal/daemon"
	"reelhouse/internal/library"
	"reelhouse/internal/logging"
	"reelhouse/internal/media/ffprobe"
	"reelhouse/internal/queue"
	"reelhouse/internal/subtitles"
	"reelhouse/internal/testsupport"
	"reelhouse/internal/transcode"
	"reelhouse/internal/workflow"
)

const testToken = "test-api-token"

const hevcFixture = `{
  "streams": [
    {"index": 0, "codec_name": "hevc", "codec_type": "video", "width": 1920, "height": 1080, "bit_rate": "9000000"},
    {"index": 1, "codec_name": "ac3", "codec_type": "audio", "sample_rate": "48000", "channels": 6, "bit_rate": "640000"}
  ],
  "format": {"filename": "movie.original.mkv", "format_name": "matroska,webm", "duration": "5400.5", "bit_rate": "9640000"}
}`

func probeRunner(_ context.Context, name string, _ ...string) ([]byte, []byte, error) {
	if name == "mediainfo" {
		return []byte("No\n"), nil, nil
	}
	return []byte(hevcFixture), nil, nil
}

func encoderWritingOutput(_ context.Context, _ string, args ...string) ([]byte, error) {
	return nil, os.WriteFile(args[len(args)-1], []byte("mp4"), 0o644)
}

func encoderExitingOne(_ context.Context, _ string, args ...string) ([]byte, error) {
	_ = os.WriteFile(args[len(args)-1], []byte("partial"), 0o644)
	return []byte("Conversion failed!"), errors.New("exit status 1")
}

type harness struct {
	cfg     *config.Config
	store   *queue.Store
	library *library.Service
	manager *workflow.Manager
	daemon  *daemon.Daemon
	server  *httptest.Server
}

// newHarness wires a daemon behind an httptest server whose URL is both the
// processing endpoint and the public callback base, so library submissions
// and conversion callbacks loop back through the real router.
func newHarness(t *testing.T, encoder transcode.CommandRunner, mutate func(*config.Config)) *harness {
	t.Helper()
	var handler http.Handler
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t,
		testsupport.WithPublicURL(server.URL),
		testsupport.WithProcessingURL(server.URL),
	)
	cfg.Paths.APIToken = testToken
	if mutate != nil {
		mutate(cfg)
	}

	store := testsupport.MustOpenQueue(t, cfg)
	libStore := testsupport.MustOpenLibrary(t, cfg)
	lib, err := library.NewService(cfg, libStore, logging.NewNop(),
		library.WithDurationProbe(func(context.Context, string) (time.Duration, error) {
			return 90 * time.Minute, nil
		}),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if encoder == nil {
		encoder = encoderWritingOutput
	}
	inspector := ffprobe.NewInspector("ffprobe", "mediainfo", ffprobe.WithRunner(probeRunner))
	manager := workflow.NewManager(cfg, store, logging.NewNop())
	manager.ConfigureHandlers(workflow.HandlerSet{
		Convert: transcode.NewHandler(cfg,
			transcode.NewFromConfig(cfg, inspector, logging.NewNop(), transcode.WithCommandRunner(encoder)),
			logging.NewNop()),
		ExtractSubtitles: subtitles.NewHandler(cfg, subtitles.NewExtractor(cfg, inspector, logging.NewNop()), logging.NewNop()),
		ConvertSubtitles: subtitles.NewHandler(cfg, subtitles.NewExtractor(cfg, inspector, logging.NewNop()), logging.NewNop()),
	})

	d, err := daemon.New(cfg, store, lib, manager, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	handler = d.Handler()
	t.Cleanup(func() {
		d.Stop()
		manager.Stop()
		_ = manager.Close()
		_ = lib.Close()
	})
	return &harness{cfg: cfg, store: store, library: lib, manager: manager, daemon: d, server: server}
}

func (h *harness) startWorkers(t *testing.T) {
	t.Helper()
	if err := h.manager.Start(context.Background()); err != nil {
		t.Fatalf("workflow Start: %v", err)
	}
}

// request sends an authenticated request and decodes a JSON response into out
// when out is non-nil.
func (h *harness) request(t *testing.T, method, path string, body any, out any) *http.Response {
	t.Helper()
	return h.send(t, method, path, testToken, nil, body, out)
}

func (h *harness) send(t *testing.T, method, path, token string, headers map[string]string, body any, out any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s (status %d): %v", method, path, resp.StatusCode, err)
		}
	}
	return resp
}

func (h *harness) admit(t *testing.T, name, title string, year int) api.Asset {
	t.Helper()
	path := testsupport.WriteTriageVideo(t, h.cfg.Paths.TriageDir, name)
	var resp api.AssetResponse
	r := h.request(t, http.MethodPost, "/library/assets", api.AdmitRequest{TriagePath: path, Title: title, Year: year}, &resp)
	if r.StatusCode != http.StatusCreated {
		t.Fatalf("admit status = %d", r.StatusCode)
	}
	return resp.Asset
}

// waitForStatus polls the library until the asset reaches want.
func (h *harness) waitForStatus(t *testing.T, id int64, want library.ConversionStatus) *library.Asset {
	t.Helper()
	deadline := time.Now().Add(20 * time.Second)
	var last *library.Asset
	for time.Now().Before(deadline) {
		asset, err := h.library.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		last = asset
		if asset.Status == want {
			return asset
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("asset %d status = %s, want %s", id, last.Status, want)
	return nil
}

// waitForJobs polls until every job in the queue is terminal.
func (h *harness) waitForJobs(t *testing.T) []*queue.Job {
	t.Helper()
	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		jobs, err := h.store.List(context.Background(), queue.Filter{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		done := len(jobs) > 0
		for _, job := range jobs {
			if !job.Status.IsTerminal() {
				done = false
			}
		}
		if done {
			return jobs
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("timed out waiting for jobs")
	return nil
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
