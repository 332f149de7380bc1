package subtitles

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"reelhouse/internal/config"
	"reelhouse/internal/logging"
	"reelhouse/internal/media/ffprobe"
	"reelhouse/internal/services"
)

type staticInspector struct {
	streams []ffprobe.SubtitleStream
	err     error
}

func (s staticInspector) Subtitles(context.Context, string) ([]ffprobe.SubtitleStream, error) {
	return s.streams, s.err
}

// sidecarRunner writes every "-y <path>" output it is asked to produce.
type sidecarRunner struct {
	calls  int
	args   []string
	stderr string
	err    error
}

func (r *sidecarRunner) run(_ context.Context, _ string, args ...string) ([]byte, error) {
	r.calls++
	r.args = args
	if r.err != nil {
		return []byte(r.stderr), r.err
	}
	for i, arg := range args {
		if arg == "-y" && i+1 < len(args) {
			if err := os.WriteFile(args[i+1], []byte("WEBVTT\n"), 0o644); err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}

func mixedStreams() []ffprobe.SubtitleStream {
	return []ffprobe.SubtitleStream{
		{Index: 2, Codec: "subrip", Language: "eng"},
		{Index: 3, Codec: "subrip", Language: "eng"},
		{Index: 4, Codec: "subrip", Language: "fre"},
		{Index: 5, Codec: "hdmv_pgs_subtitle", Language: "ger", Bitmap: true},
	}
}

func TestSelectTracks(t *testing.T) {
	selected := SelectTracks(mixedStreams(), []string{"eng", "fre", "ger"}, []string{"hdmv_pgs_subtitle", "ass"})
	var indexes []int
	for _, stream := range selected {
		indexes = append(indexes, stream.Index)
	}
	if !slices.Equal(indexes, []int{2, 4}) {
		t.Fatalf("selected = %v, want [2 4]", indexes)
	}
}

func TestSelectTracksSkipsDeniedAndDisallowed(t *testing.T) {
	streams := []ffprobe.SubtitleStream{
		{Index: 1, Codec: "ass", Language: "eng"},
		{Index: 2, Codec: "subrip", Language: "spa"},
		{Index: 3, Codec: "mov_text", Language: "eng"},
	}
	selected := SelectTracks(streams, []string{"eng"}, []string{"ass"})
	if len(selected) != 1 || selected[0].Index != 3 {
		t.Fatalf("selected = %+v", selected)
	}
}

func newExtractor(t *testing.T, streams []ffprobe.SubtitleStream, runner *sidecarRunner, mutate func(*config.Config)) *Extractor {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	return NewExtractor(&cfg, staticInspector{streams: streams}, logging.NewNop(), WithCommandRunner(runner.run))
}

func TestExtractWritesOnePairPerLanguage(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "Heat (1995).original.mkv")
	if err := os.WriteFile(input, []byte("mkv"), 0o644); err != nil {
		t.Fatal(err)
	}
	runner := &sidecarRunner{}
	result, err := newExtractor(t, mixedStreams(), runner, nil).Extract(context.Background(), input)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if runner.calls != 1 {
		t.Fatalf("expected a single ffmpeg invocation, got %d", runner.calls)
	}
	if len(result.Tracks) != 2 {
		t.Fatalf("tracks = %d, want 2", len(result.Tracks))
	}
	for _, name := range []string{"Heat (1995).eng.srt", "Heat (1995).eng.vtt", "Heat (1995).fre.srt", "Heat (1995).fre.vtt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
	entries, _ := os.ReadDir(dir)
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".extracting") {
			t.Fatalf("temp sidecar left behind: %s", entry.Name())
		}
	}
	if !strings.Contains(strings.Join(runner.args, " "), "-map 0:2") || strings.Contains(strings.Join(runner.args, " "), "-map 0:3") {
		t.Fatalf("unexpected mapping: %v", runner.args)
	}
}

func TestExtractOmitsDefaultLanguageTag(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "Heat (1995).original.mkv")
	if err := os.WriteFile(input, []byte("mkv"), 0o644); err != nil {
		t.Fatal(err)
	}
	runner := &sidecarRunner{}
	_, err := newExtractor(t, mixedStreams(), runner, func(cfg *config.Config) {
		cfg.Subtitles.OmitDefaultLanguageTag = true
	}).Extract(context.Background(), input)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for _, name := range []string{"Heat (1995).srt", "Heat (1995).vtt", "Heat (1995).fre.vtt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
}

func TestExtractWithoutEligibleTracks(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "clip.mkv")
	if err := os.WriteFile(input, []byte("mkv"), 0o644); err != nil {
		t.Fatal(err)
	}
	runner := &sidecarRunner{}
	result, err := newExtractor(t, []ffprobe.SubtitleStream{{Index: 2, Codec: "dvd_subtitle", Language: "eng", Bitmap: true}}, runner, nil).
		Extract(context.Background(), input)
	if err != nil || len(result.Tracks) != 0 || runner.calls != 0 {
		t.Fatalf("result=%+v err=%v calls=%d", result, err, runner.calls)
	}
}

func TestExtractFailureIsSubtitleExtractError(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "clip.mkv")
	if err := os.WriteFile(input, []byte("mkv"), 0o644); err != nil {
		t.Fatal(err)
	}
	runner := &sidecarRunner{err: errors.New("exit status 1"), stderr: "Stream map '0:2' matches no streams"}
	_, err := newExtractor(t, mixedStreams(), runner, nil).Extract(context.Background(), input)
	if !errors.Is(err, services.ErrSubtitleExtract) {
		t.Fatalf("expected ErrSubtitleExtract, got %v", err)
	}
	if !strings.Contains(services.ToolOutput(err), "matches no streams") {
		t.Fatalf("stderr missing from error: %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "clip.eng.srt")); statErr == nil {
		t.Fatal("sidecar should not exist after failure")
	}
}

func TestExtractMissingInput(t *testing.T) {
	_, err := newExtractor(t, nil, &sidecarRunner{}, nil).Extract(context.Background(), filepath.Join(t.TempDir(), "missing.mkv"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSidecarBase(t *testing.T) {
	tests := map[string]string{
		"/lib/Heat (1995).original.mkv":  "/lib/Heat (1995)",
		"/lib/Heat (1995).converted.mp4": "/lib/Heat (1995)",
		"/lib/plain.mkv":                 "/lib/plain",
	}
	for input, want := range tests {
		if got := SidecarBase(input); got != want {
			t.Fatalf("SidecarBase(%q) = %q, want %q", input, got, want)
		}
	}
}
