package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"reelhouse/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrEncode, "transcode", "reencode", "ffmpeg failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrEncode) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"transcode", "reencode", "ffmpeg failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWithOutputKeepsMarkerAndOutput(t *testing.T) {
	err := services.Wrap(services.ErrProbe, "inspect", "ffprobe", "exit status 1", nil)
	err = services.WithOutput(err, "  moov atom not found\n")
	if !errors.Is(err, services.ErrProbe) {
		t.Fatalf("expected probe marker, got %v", err)
	}
	if got := services.ToolOutput(err); got != "moov atom not found" {
		t.Fatalf("unexpected tool output %q", got)
	}
	if details := services.Details(err); strings.Contains(details, "moov") {
		t.Fatalf("details should omit tool output, got %q", details)
	}
	wrapped := fmt.Errorf("job 7: %w", err)
	if services.ToolOutput(wrapped) == "" {
		t.Fatal("expected tool output through wrapping")
	}
}

func TestWithOutputBlankIsNoop(t *testing.T) {
	base := errors.New("boom")
	if got := services.WithOutput(base, "   "); got != base {
		t.Fatalf("expected original error, got %v", got)
	}
	if services.WithOutput(nil, "x") != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrCaptionParse, "captions", "parse", "empty", nil), "caption_parse"},
		{services.Wrap(services.ErrConnection, "callback", "post", "refused", nil), "connection"},
		{services.Wrap(services.ErrTimeout, "job", "", "deadline", nil), "timeout"},
		{errors.New("plain"), "internal"},
	}
	for _, tc := range cases {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
