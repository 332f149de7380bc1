package workflow_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"reelhouse/internal/config"
	"reelhouse/internal/logging"
	"reelhouse/internal/notifications"
	"reelhouse/internal/queue"
	"reelhouse/internal/stage"
	"reelhouse/internal/testsupport"
	"reelhouse/internal/workflow"
)

type stubHandler struct {
	name       string
	prepareErr error
	execute    func(ctx context.Context, job *queue.Job) error
}

func newStubHandler(name string, execute func(context.Context, *queue.Job) error) *stubHandler {
	return &stubHandler{name: name, execute: execute}
}

func (s *stubHandler) Prepare(context.Context, *queue.Job) error {
	return s.prepareErr
}

func (s *stubHandler) Execute(ctx context.Context, job *queue.Job) error {
	if s.execute == nil {
		return nil
	}
	return s.execute(ctx, job)
}

func (s *stubHandler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(s.name)
}

// callbackRecorder is a webhook receiver that records every posted status.
type callbackRecorder struct {
	server *httptest.Server
	status int

	mu       sync.Mutex
	statuses []string
}

func newCallbackRecorder(t *testing.T, status int) *callbackRecorder {
	t.Helper()
	rec := &callbackRecorder{status: status}
	rec.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload notifications.CallbackPayload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		rec.mu.Lock()
		rec.statuses = append(rec.statuses, string(payload.Status))
		rec.mu.Unlock()
		w.WriteHeader(rec.status)
	}))
	t.Cleanup(rec.server.Close)
	return rec
}

func (c *callbackRecorder) URL() string {
	return c.server.URL + "/library/callback?id=1&token=abc"
}

func (c *callbackRecorder) Statuses() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.statuses...)
}

type recordingAlerter struct {
	mu     sync.Mutex
	inputs []string
}

func (a *recordingAlerter) JobFailed(_ context.Context, _ string, input string, _ error) error {
	a.mu.Lock()
	a.inputs = append(a.inputs, input)
	a.mu.Unlock()
	return nil
}

func (a *recordingAlerter) Test(context.Context) error { return nil }

func (a *recordingAlerter) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inputs)
}

type harness struct {
	cfg     *config.Config
	store   *queue.Store
	manager *workflow.Manager
	alerter *recordingAlerter
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	store := testsupport.MustOpenQueue(t, cfg)
	alerter := &recordingAlerter{}
	sender := notifications.NewCallbackSender(cfg, logging.NewNop())
	mgr := workflow.NewManager(cfg, store, logging.NewNop(),
		workflow.WithCallbackSender(sender),
		workflow.WithAlerter(alerter),
	)
	t.Cleanup(func() {
		mgr.Stop()
		_ = mgr.Close()
	})
	return &harness{cfg: cfg, store: store, manager: mgr, alerter: alerter}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func (h *harness) enqueue(t *testing.T, req queue.NewJob) *queue.Job {
	t.Helper()
	job, err := h.store.Enqueue(context.Background(), req)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	h.manager.Notify(job.Lane)
	return job
}

// finish waits for the job to reach a terminal status, then stops the manager
// so callback delivery and alerts have completed before assertions run.
func (h *harness) finish(t *testing.T, id int64) *queue.Job {
	t.Helper()
	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		job, err := h.store.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if job != nil && job.Status.IsTerminal() {
			h.manager.Stop()
			final, err := h.store.Get(context.Background(), id)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			return final
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for job %d", id)
	return nil
}
