package library_test

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"reelhouse/internal/api"
	"reelhouse/internal/config"
	"reelhouse/internal/library"
	"reelhouse/internal/logging"
	"reelhouse/internal/services"
	"reelhouse/internal/testsupport"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	requests []api.ConvertRequest
	err      error
}

func (f *fakeSubmitter) Convert(_ context.Context, req api.ConvertRequest) (*api.SubmitResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &api.SubmitResponse{Job: api.Job{ID: int64(len(f.requests)), Status: "queued"}}, nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type libraryHarness struct {
	cfg       *config.Config
	store     *library.Store
	svc       *library.Service
	submitter *fakeSubmitter
}

func newLibraryHarness(t *testing.T) *libraryHarness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLibrary(t, cfg)
	submitter := &fakeSubmitter{}
	svc, err := library.NewService(cfg, store, logging.NewNop(),
		library.WithSubmitter(submitter),
		library.WithDurationProbe(func(context.Context, string) (time.Duration, error) {
			return 5423900 * time.Millisecond, nil
		}),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &libraryHarness{cfg: cfg, store: store, svc: svc, submitter: submitter}
}

func (h *libraryHarness) admit(t *testing.T, name string, req api.AdmitRequest) *library.Asset {
	t.Helper()
	req.TriagePath = testsupport.WriteTriageVideo(t, h.cfg.Paths.TriageDir, name)
	asset, err := h.svc.Admit(context.Background(), req)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	return asset
}

func tokenFor(t *testing.T, svc *library.Service, asset *library.Asset) string {
	t.Helper()
	parsed, err := url.Parse(svc.CallbackURL(asset))
	if err != nil {
		t.Fatalf("parse callback url: %v", err)
	}
	return parsed.Query().Get("token")
}

func status(t *testing.T, store *library.Store, id int64) library.ConversionStatus {
	t.Helper()
	asset, err := store.Get(context.Background(), id)
	if err != nil || asset == nil {
		t.Fatalf("Get(%d): %v %v", id, asset, err)
	}
	return asset.Status
}

func TestAdmitLinksOriginalAndRejectsDuplicates(t *testing.T) {
	h := newLibraryHarness(t)
	asset := h.admit(t, "heat.1995.mkv", api.AdmitRequest{Title: "Heat", Year: 1995, CatalogID: "949"})

	if asset.BaseName != "Heat (1995)" || asset.MediaType != library.MediaMovie || asset.Status != library.StatusNotConverted {
		t.Fatalf("unexpected asset %+v", asset)
	}
	original := asset.ArtifactPath(library.ArtifactOriginal)
	if original != filepath.Join(h.cfg.Paths.LibraryDir, "Heat (1995).original.mkv") {
		t.Fatalf("original path = %s", original)
	}
	testsupport.AssertExists(t, original)

	_, err := h.svc.Admit(context.Background(), api.AdmitRequest{TriagePath: asset.TriagePath, Title: "Heat", Year: 1995})
	if !errors.Is(err, services.ErrValidation) || !strings.Contains(err.Error(), "already triaged") {
		t.Fatalf("expected already triaged validation error, got %v", err)
	}
}

func TestAdmitRejectsTakenBaseName(t *testing.T) {
	h := newLibraryHarness(t)
	ctx := context.Background()
	first := h.admit(t, "heat.mkv", api.AdmitRequest{Title: "Heat", Year: 1995})
	original := first.ArtifactPath(library.ArtifactOriginal)

	remux := testsupport.WriteTriageVideo(t, h.cfg.Paths.TriageDir, "heat-remux.mkv")
	if _, err := h.svc.Admit(ctx, api.AdmitRequest{TriagePath: remux, Title: "Heat", Year: 1995}); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected ErrConflict for a taken base name, got %v", err)
	}
	data, err := os.ReadFile(original)
	if err != nil {
		t.Fatalf("read original: %v", err)
	}
	if string(data) != "video:heat.mkv" {
		t.Fatalf("first original overwritten: %q", data)
	}

	// A stray file under the name blocks admission without being replaced.
	stray := testsupport.WriteFile(t, filepath.Join(h.cfg.Paths.LibraryDir, "Ronin (1998).original.mkv"), "stray")
	ronin := testsupport.WriteTriageVideo(t, h.cfg.Paths.TriageDir, "ronin.mkv")
	if _, err := h.svc.Admit(ctx, api.AdmitRequest{TriagePath: ronin, Title: "Ronin", Year: 1998}); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected ErrConflict for an existing file, got %v", err)
	}
	if data, _ := os.ReadFile(stray); string(data) != "stray" {
		t.Fatalf("stray file replaced: %q", data)
	}
	videos, err := h.svc.ListUntriaged(ctx)
	if err != nil {
		t.Fatalf("ListUntriaged: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("rejected files should stay untriaged, got %v", videos)
	}

	if err := h.svc.DeleteAsset(ctx, first.ID); err != nil {
		t.Fatalf("DeleteAsset: %v", err)
	}
	if _, err := h.svc.Admit(ctx, api.AdmitRequest{TriagePath: remux, Title: "Heat", Year: 1995}); err != nil {
		t.Fatalf("Admit after delete: %v", err)
	}
}

func TestAdmitRejectsPathsOutsideTriage(t *testing.T) {
	h := newLibraryHarness(t)
	outside := testsupport.WriteFile(t, filepath.Join(testsupport.BaseDir(h.cfg), "elsewhere", "x.mkv"), "x")
	if _, err := h.svc.Admit(context.Background(), api.AdmitRequest{TriagePath: outside, Title: "X"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := h.svc.Admit(context.Background(), api.AdmitRequest{TriagePath: "missing.mkv", Title: "X"}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListUntriagedSkipsAdmitted(t *testing.T) {
	h := newLibraryHarness(t)
	h.admit(t, "a.mkv", api.AdmitRequest{Title: "A", Year: 2001})
	pending := testsupport.WriteTriageVideo(t, h.cfg.Paths.TriageDir, "b.mp4")
	testsupport.WriteFile(t, filepath.Join(h.cfg.Paths.TriageDir, "notes.txt"), "n")
	testsupport.WriteFile(t, filepath.Join(h.cfg.Paths.TriageDir, ".partial.mkv"), "p")

	videos, err := h.svc.ListUntriaged(context.Background())
	if err != nil {
		t.Fatalf("ListUntriaged: %v", err)
	}
	if len(videos) != 1 || videos[0] != pending {
		t.Fatalf("untriaged = %v", videos)
	}
}

func TestHandleCallback(t *testing.T) {
	h := newLibraryHarness(t)
	ctx := context.Background()
	asset := h.admit(t, "heat.mkv", api.AdmitRequest{Title: "Heat", Year: 1995})
	token := tokenFor(t, h.svc, asset)

	if err := h.svc.HandleCallback(ctx, asset.ID, strings.Repeat("0", 64), "converted"); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("forged token: expected ErrForbidden, got %v", err)
	}
	if got := status(t, h.store, asset.ID); got != library.StatusNotConverted {
		t.Fatalf("status changed by forged callback: %s", got)
	}

	if err := h.svc.HandleCallback(ctx, asset.ID, token, "done"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("unknown status: expected ErrValidation, got %v", err)
	}
	if got := status(t, h.store, asset.ID); got != library.StatusNotConverted {
		t.Fatalf("status changed by invalid callback: %s", got)
	}

	if err := h.svc.HandleCallback(ctx, asset.ID, token, "converted"); err != nil {
		t.Fatalf("callback without a conversion in flight: %v", err)
	}
	if got := status(t, h.store, asset.ID); got != library.StatusNotConverted {
		t.Fatalf("status changed without a conversion in flight: %s", got)
	}

	if _, err := h.svc.Submit(ctx, asset.ID, ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := h.svc.HandleCallback(ctx, asset.ID, token, "conversion-failed"); err != nil {
		t.Fatalf("valid callback: %v", err)
	}
	if got := status(t, h.store, asset.ID); got != library.StatusConversionFailed {
		t.Fatalf("status = %s, want conversion-failed", got)
	}
	if err := h.svc.HandleCallback(ctx, asset.ID, token, "converted"); err != nil {
		t.Fatalf("late callback: %v", err)
	}
	if got := status(t, h.store, asset.ID); got != library.StatusConversionFailed {
		t.Fatalf("late callback overwrote the outcome: %s", got)
	}

	if err := h.svc.HandleCallback(ctx, 9999, token, "converted"); err != nil {
		t.Fatalf("callback for missing asset should be a no-op, got %v", err)
	}
}

func TestSubmitGuardsInFlightAssets(t *testing.T) {
	h := newLibraryHarness(t)
	ctx := context.Background()
	asset := h.admit(t, "heat.mkv", api.AdmitRequest{Title: "Heat", Year: 1995})

	updated, err := h.svc.Submit(ctx, asset.ID, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if updated.Status != library.StatusConverting {
		t.Fatalf("status = %s, want converting", updated.Status)
	}
	req := h.submitter.requests[0]
	if req.Input != "Heat (1995).original.mkv" || req.Output != "Heat (1995).converted.mp4" {
		t.Fatalf("request paths should be relative to the library: %+v", req)
	}
	if !strings.HasPrefix(req.CallbackURL, h.cfg.Paths.PublicURL+"/library/callback?id=") {
		t.Fatalf("callback url = %s", req.CallbackURL)
	}

	if _, err := h.svc.Submit(ctx, asset.ID, ""); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if h.submitter.count() != 1 {
		t.Fatalf("conflicting submission reached the endpoint")
	}

	if err := h.svc.HandleCallback(ctx, asset.ID, tokenFor(t, h.svc, asset), "converted"); err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if got := status(t, h.store, asset.ID); got != library.StatusConverted {
		t.Fatalf("status = %s, want converted", got)
	}
}

func TestSubmitRevertsOnConnectionError(t *testing.T) {
	h := newLibraryHarness(t)
	ctx := context.Background()
	asset := h.admit(t, "heat.mkv", api.AdmitRequest{Title: "Heat", Year: 1995})
	h.submitter.err = services.Wrap(services.ErrConnection, "api", "post", "unreachable", nil)

	if _, err := h.svc.Submit(ctx, asset.ID, ""); !errors.Is(err, services.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	if got := status(t, h.store, asset.ID); got != library.StatusNotConverted {
		t.Fatalf("status = %s, want not-converted after revert", got)
	}
	if _, err := h.svc.Submit(ctx, asset.ID, "huge"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown tier, got %v", err)
	}
}

func TestDeleteAssetKeepsSharedCover(t *testing.T) {
	h := newLibraryHarness(t)
	ctx := context.Background()
	first := h.admit(t, "wire.s1e1.mkv", api.AdmitRequest{Title: "The Wire", Year: 2002, Season: intPtr(1), Episode: intPtr(1), CatalogID: "1438"})
	second := h.admit(t, "wire.s1e2.mkv", api.AdmitRequest{Title: "The Wire", Year: 2002, Season: intPtr(1), Episode: intPtr(2), CatalogID: "1438"})

	cover := testsupport.WriteFile(t, first.ArtifactPath(library.ArtifactCover), "jpg")
	converted := testsupport.WriteFile(t, first.ArtifactPath(library.ArtifactConverted), "mp4")
	sidecar := testsupport.WriteFile(t, first.SubtitlePath("eng", "vtt"), "WEBVTT")

	if err := h.svc.DeleteAsset(ctx, first.ID); err != nil {
		t.Fatalf("DeleteAsset: %v", err)
	}
	for _, path := range []string{first.ArtifactPath(library.ArtifactOriginal), converted, sidecar} {
		testsupport.AssertMissing(t, path)
	}
	testsupport.AssertExists(t, cover)
	testsupport.AssertExists(t, second.ArtifactPath(library.ArtifactOriginal))

	if err := h.svc.DeleteAsset(ctx, second.ID); err != nil {
		t.Fatalf("DeleteAsset: %v", err)
	}
	testsupport.AssertMissing(t, cover)

	if err := h.svc.DeleteAsset(ctx, second.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for repeated delete, got %v", err)
	}
}

func TestDeleteAssetKeepsCoverOfSameTitle(t *testing.T) {
	h := newLibraryHarness(t)
	ctx := context.Background()
	original := h.admit(t, "solaris.mkv", api.AdmitRequest{Title: "Solaris", Year: 1972, Season: intPtr(1), Episode: intPtr(1), CatalogID: "593"})
	other := h.admit(t, "solaris.2.mkv", api.AdmitRequest{Title: "Solaris", Year: 1972, Season: intPtr(1), Episode: intPtr(2), CatalogID: "2103"})
	cover := testsupport.WriteFile(t, original.ArtifactPath(library.ArtifactCover), "jpg")
	if other.ArtifactPath(library.ArtifactCover) != cover {
		t.Fatalf("assets of one title should share %s", cover)
	}

	if err := h.svc.DeleteAsset(ctx, original.ID); err != nil {
		t.Fatalf("DeleteAsset: %v", err)
	}
	testsupport.AssertExists(t, cover)
	if err := h.svc.DeleteAsset(ctx, other.ID); err != nil {
		t.Fatalf("DeleteAsset: %v", err)
	}
	testsupport.AssertMissing(t, cover)
}

func TestRefreshDurationTruncates(t *testing.T) {
	h := newLibraryHarness(t)
	asset := h.admit(t, "heat.mkv", api.AdmitRequest{Title: "Heat", Year: 1995})

	updated, err := h.svc.RefreshDuration(context.Background(), asset.ID)
	if err != nil {
		t.Fatalf("RefreshDuration: %v", err)
	}
	if updated.DurationSeconds == nil || *updated.DurationSeconds != 5423 {
		t.Fatalf("duration = %v", updated.DurationSeconds)
	}

	if err := os.Remove(asset.ArtifactPath(library.ArtifactOriginal)); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.RefreshDuration(context.Background(), asset.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound without media, got %v", err)
	}
}

func TestScanAndSubmit(t *testing.T) {
	h := newLibraryHarness(t)
	ctx := context.Background()
	pending := h.admit(t, "a.mkv", api.AdmitRequest{Title: "A", Year: 2001})
	done := h.admit(t, "b.mkv", api.AdmitRequest{Title: "B", Year: 2002})
	testsupport.WriteFile(t, done.ArtifactPath(library.ArtifactConverted), "mp4")

	submitted, err := h.svc.ScanAndSubmit(ctx)
	if err != nil {
		t.Fatalf("ScanAndSubmit: %v", err)
	}
	if submitted != 1 || h.submitter.count() != 1 {
		t.Fatalf("submitted = %d, requests = %d", submitted, h.submitter.count())
	}
	if got := status(t, h.store, pending.ID); got != library.StatusConverting {
		t.Fatalf("status = %s", got)
	}

	again, err := h.svc.ScanAndSubmit(ctx)
	if err != nil || again != 0 {
		t.Fatalf("second scan = %d, %v", again, err)
	}
}

func TestViewDerivesEffectiveStatus(t *testing.T) {
	h := newLibraryHarness(t)
	asset := h.admit(t, "heat.mkv", api.AdmitRequest{Title: "Heat", Year: 1995})
	if _, err := h.svc.Submit(context.Background(), asset.ID, ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	current, _ := h.store.Get(context.Background(), asset.ID)
	if view := library.View(current); view.EffectiveStatus != "converting" {
		t.Fatalf("effective = %s", view.EffectiveStatus)
	}
	testsupport.WriteFile(t, current.ArtifactPath(library.ArtifactConverted), "mp4")
	if view := library.View(current); view.EffectiveStatus != "converted" || view.Status != "converting" {
		t.Fatalf("view = %+v", view)
	}
}

func intPtr(v int) *int { return &v }

func TestAutoConverterRejectsBadSchedule(t *testing.T) {
	h := newLibraryHarness(t)
	if _, err := library.NewAutoConverter(h.svc, "every tuesday", logging.NewNop()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	auto, err := library.NewAutoConverter(h.svc, "@every 1h", logging.NewNop())
	if err != nil {
		t.Fatalf("NewAutoConverter: %v", err)
	}
	if err := auto.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	auto.Stop()
}
