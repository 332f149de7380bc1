package daemon_test

import (
	"context"
	"net/http"
	"net/url"
	"path/filepath"
	"testing"

	"reelhouse/internal/api"
	"reelhouse/internal/library"
	"reelhouse/internal/queue"
	"reelhouse/internal/testsupport"
)

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newHarness(t, nil, nil)
	for _, token := range []string{"", "wrong-token"} {
		var body api.ErrorResponse
		resp := h.send(t, http.MethodGet, "/jobs", token, nil, nil, &body)
		if resp.StatusCode != http.StatusUnauthorized || body.Kind != "forbidden" {
			t.Fatalf("token %q: status=%d body=%+v", token, resp.StatusCode, body)
		}
	}
	if resp := h.send(t, http.MethodGet, "/health", "", nil, nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("health should not need a token, got %d", resp.StatusCode)
	}
}

func TestConvertValidation(t *testing.T) {
	h := newHarness(t, nil, nil)
	original := testsupport.WriteFile(t, filepath.Join(h.cfg.Paths.LibraryDir, "Heat (1995).original.mkv"), "mkv")
	output := filepath.Join(h.cfg.Paths.LibraryDir, "Heat (1995).converted.mp4")

	tests := []struct {
		name   string
		req    api.ConvertRequest
		status int
	}{
		{"missing input", api.ConvertRequest{Output: output}, http.StatusBadRequest},
		{"missing output", api.ConvertRequest{Input: original}, http.StatusBadRequest},
		{"outside library", api.ConvertRequest{Input: "/etc/passwd", Output: output}, http.StatusBadRequest},
		{"absent input", api.ConvertRequest{Input: filepath.Join(h.cfg.Paths.LibraryDir, "gone.mkv"), Output: output}, http.StatusNotFound},
		{"bad callback", api.ConvertRequest{Input: original, Output: output, CallbackURL: "ftp://example.com/x"}, http.StatusBadRequest},
		{"bad tier", api.ConvertRequest{Input: original, Output: output, Tier: "huge"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body api.ErrorResponse
			resp := h.request(t, http.MethodPost, "/convert", tt.req, &body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d (%+v)", resp.StatusCode, tt.status, body)
			}
			if body.Error == "" {
				t.Fatal("expected an error message")
			}
		})
	}

	jobs, err := h.store.List(context.Background(), queue.Filter{})
	if err != nil || len(jobs) != 0 {
		t.Fatalf("rejected submissions must not enqueue: %d jobs, %v", len(jobs), err)
	}
}

func TestConvertQueuesRelatedSubtitleJob(t *testing.T) {
	h := newHarness(t, nil, nil)
	original := testsupport.WriteFile(t, filepath.Join(h.cfg.Paths.LibraryDir, "Heat (1995).original.mkv"), "mkv")

	var resp api.SubmitResponse
	r := h.send(t, http.MethodPost, "/convert", testToken, map[string]string{"X-Request-ID": "req-42"},
		api.ConvertRequest{Input: "Heat (1995).original.mkv", Output: "Heat (1995).converted.mp4", Tier: "Small"}, &resp)
	if r.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", r.StatusCode)
	}
	if r.Header.Get("X-Request-ID") != "req-42" {
		t.Fatalf("request id not echoed: %q", r.Header.Get("X-Request-ID"))
	}
	if resp.Job.Kind != string(queue.KindConvert) || resp.Job.Input != original || resp.Job.Tier != "small" {
		t.Fatalf("job = %+v", resp.Job)
	}
	if resp.Job.CorrelationID != "req-42" {
		t.Fatalf("correlation id = %q", resp.Job.CorrelationID)
	}
	if len(resp.Related) != 1 || resp.Related[0].Kind != string(queue.KindExtractSubtitles) || resp.Related[0].CorrelationID != "req-42" {
		t.Fatalf("related = %+v", resp.Related)
	}

	var listed api.JobListResponse
	h.request(t, http.MethodGet, "/jobs?lane=subtitles&status=queued", nil, &listed)
	if len(listed.Jobs) != 1 || listed.Jobs[0].ID != resp.Related[0].ID {
		t.Fatalf("listed = %+v", listed.Jobs)
	}

	var single api.JobResponse
	if r := h.request(t, http.MethodGet, "/jobs/"+itoa(resp.Job.ID), nil, &single); r.StatusCode != http.StatusOK {
		t.Fatalf("get job status = %d", r.StatusCode)
	}
	if single.Job.Output != filepath.Join(h.cfg.Paths.LibraryDir, "Heat (1995).converted.mp4") {
		t.Fatalf("output = %q", single.Job.Output)
	}
}

func TestJobQueriesRejectBadFilters(t *testing.T) {
	h := newHarness(t, nil, nil)
	for _, query := range []string{"lane=gpu", "status=paused", "status=queued,bogus", "limit=-1", "limit=ten"} {
		if r := h.request(t, http.MethodGet, "/jobs?"+query, nil, nil); r.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", query, r.StatusCode)
		}
	}
	if r := h.request(t, http.MethodGet, "/jobs/999", nil, nil); r.StatusCode != http.StatusNotFound {
		t.Fatalf("missing job status = %d", r.StatusCode)
	}
	if r := h.request(t, http.MethodPost, "/jobs/prune?olderThan=soon", nil, nil); r.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad prune window status = %d", r.StatusCode)
	}
	var pruned api.PruneResponse
	if r := h.request(t, http.MethodPost, "/jobs/prune?olderThan=1h", nil, &pruned); r.StatusCode != http.StatusOK || pruned.Removed != 0 {
		t.Fatalf("prune = %d %+v", r.StatusCode, pruned)
	}
}

func TestSubtitleSubmissions(t *testing.T) {
	h := newHarness(t, nil, nil)
	dir := filepath.Join(h.cfg.Paths.LibraryDir, "subs")
	testsupport.WriteFile(t, filepath.Join(dir, "a.srt"), "1\n00:00:01,000 --> 00:00:02,000\nhi\n")

	var resp api.SubmitResponse
	if r := h.request(t, http.MethodPost, "/convertSubtitles", api.InputRequest{Input: dir}, &resp); r.StatusCode != http.StatusAccepted {
		t.Fatalf("convertSubtitles status = %d", r.StatusCode)
	}
	if resp.Job.Lane != string(queue.LaneSubtitles) || resp.Job.Kind != string(queue.KindConvertSubtitles) {
		t.Fatalf("job = %+v", resp.Job)
	}
	if r := h.request(t, http.MethodPost, "/extractSubtitles", api.InputRequest{Input: "missing.mkv"}, nil); r.StatusCode != http.StatusNotFound {
		t.Fatalf("extractSubtitles missing input status = %d", r.StatusCode)
	}
	if r := h.request(t, http.MethodPost, "/extractSubtitles", map[string]string{"path": "x"}, nil); r.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d", r.StatusCode)
	}
}

func TestCallbackEndpoint(t *testing.T) {
	h := newHarness(t, nil, nil)
	asset := h.admit(t, "heat.mkv", "Heat", 1995)
	stored, err := h.library.Get(context.Background(), asset.ID)
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := h.library.Store().TransitionStatus(context.Background(), asset.ID, library.StatusConverting, library.StatusNotConverted); err != nil || !ok {
		t.Fatalf("mark converting: %v %v", ok, err)
	}
	callback, err := url.Parse(h.library.CallbackURL(stored))
	if err != nil {
		t.Fatal(err)
	}
	token := callback.Query().Get("token")
	path := func(id, token string) string {
		return "/library/callback?" + url.Values{"id": {id}, "token": {token}}.Encode()
	}

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"forged token", path(itoa(asset.ID), "00ff"), api.CallbackRequest{Status: "converted"}, http.StatusForbidden},
		{"bad id", path("abc", token), api.CallbackRequest{Status: "converted"}, http.StatusBadRequest},
		{"unknown status", path(itoa(asset.ID), token), api.CallbackRequest{Status: "finished"}, http.StatusBadRequest},
		{"unknown asset", path("9999", token), api.CallbackRequest{Status: "converted"}, http.StatusNoContent},
		{"valid", path(itoa(asset.ID), token), api.CallbackRequest{Status: "conversion-failed"}, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := h.send(t, http.MethodPost, tt.path, "", nil, tt.body, nil)
			if r.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", r.StatusCode, tt.status)
			}
		})
	}

	final, err := h.library.Get(context.Background(), asset.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.Status != library.StatusConversionFailed {
		t.Fatalf("status = %s", final.Status)
	}
}

func TestAssetRoutes(t *testing.T) {
	h := newHarness(t, nil, nil)
	testsupport.WriteTriageVideo(t, h.cfg.Paths.TriageDir, "pending.mkv")
	asset := h.admit(t, "heat.mkv", "Heat", 1995)
	if asset.BaseName != "Heat (1995)" || asset.EffectiveStatus != string(library.StatusNotConverted) {
		t.Fatalf("asset = %+v", asset)
	}

	var triage api.UntriagedResponse
	h.request(t, http.MethodGet, "/library/triage", nil, &triage)
	if len(triage.Videos) != 1 || filepath.Base(triage.Videos[0]) != "pending.mkv" {
		t.Fatalf("untriaged = %v", triage.Videos)
	}

	var list api.AssetListResponse
	h.request(t, http.MethodGet, "/library/assets", nil, &list)
	if len(list.Assets) != 1 || list.Assets[0].ID != asset.ID {
		t.Fatalf("assets = %+v", list.Assets)
	}

	var refreshed api.AssetResponse
	if r := h.request(t, http.MethodPost, "/library/assets/"+itoa(asset.ID)+"/duration", nil, &refreshed); r.StatusCode != http.StatusOK {
		t.Fatalf("duration status = %d", r.StatusCode)
	}
	if refreshed.Asset.DurationSeconds == nil || *refreshed.Asset.DurationSeconds != 5400 {
		t.Fatalf("duration = %v", refreshed.Asset.DurationSeconds)
	}

	if r := h.request(t, http.MethodPost, "/library/assets/"+itoa(asset.ID)+"/convert", api.AssetConvertRequest{Tier: "huge"}, nil); r.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad tier status = %d", r.StatusCode)
	}
	if r := h.request(t, http.MethodDelete, "/library/assets/"+itoa(asset.ID), nil, nil); r.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", r.StatusCode)
	}
	testsupport.AssertMissing(t, filepath.Join(h.cfg.Paths.LibraryDir, "Heat (1995).original.mkv"))
	if r := h.request(t, http.MethodGet, "/library/assets/"+itoa(asset.ID), nil, nil); r.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted asset status = %d", r.StatusCode)
	}
	if r := h.request(t, http.MethodPost, "/library/assets", api.AdmitRequest{TriagePath: "/etc/hosts", Title: "Hosts"}, nil); r.StatusCode != http.StatusBadRequest {
		t.Fatalf("admit outside triage status = %d", r.StatusCode)
	}
}

func TestUnknownRouteIsJSON(t *testing.T) {
	h := newHarness(t, nil, nil)
	var body api.ErrorResponse
	if r := h.request(t, http.MethodGet, "/nope", nil, &body); r.StatusCode != http.StatusNotFound || body.Kind != "not_found" {
		t.Fatalf("status=%d body=%+v", r.StatusCode, body)
	}
}
