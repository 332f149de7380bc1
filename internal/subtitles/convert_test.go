package subtitles

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"reelhouse/internal/logging"
	"reelhouse/internal/services"
)

const sampleSRT = "1\r\n00:00:01,000 --> 00:00:04,000\r\nBonjour, ça va ?\r\n\r\n2\r\n00:00:05,500 --> 00:00:07,250\r\nTrès bien.\r\n"

func writeSRT(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func assertVTT(t *testing.T, path string, exactText bool) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read vtt: %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "WEBVTT") {
		t.Fatalf("missing WEBVTT header: %q", text)
	}
	if !strings.Contains(text, "00:00:05.500 --> 00:00:07.250") {
		t.Fatalf("missing cue timing: %q", text)
	}
	if !utf8.ValidString(text) || !strings.Contains(text, "bien.") {
		t.Fatalf("text not decoded to UTF-8: %q", text)
	}
	if exactText && !strings.Contains(text, "Très bien.") {
		t.Fatalf("text altered during conversion: %q", text)
	}
}

func TestConvertSidecarUTF8(t *testing.T) {
	path := writeSRT(t, t.TempDir(), "movie.fre.srt", []byte(sampleSRT))
	out, err := ConvertSidecar(path)
	if err != nil {
		t.Fatalf("ConvertSidecar: %v", err)
	}
	if out != strings.TrimSuffix(path, ".srt")+".vtt" {
		t.Fatalf("output path = %s", out)
	}
	assertVTT(t, out, true)
}

func TestConvertSidecarDetectsEncodings(t *testing.T) {
	latin1, err := charmap.Windows1252.NewEncoder().Bytes([]byte(sampleSRT))
	if err != nil {
		t.Fatal(err)
	}
	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(sampleSRT))
	if err != nil {
		t.Fatal(err)
	}
	bom := append([]byte{0xEF, 0xBB, 0xBF}, []byte(sampleSRT)...)

	for name, data := range map[string][]byte{"latin1": latin1, "utf16": utf16, "utf8-bom": bom} {
		t.Run(name, func(t *testing.T) {
			out, err := ConvertSidecar(writeSRT(t, t.TempDir(), "movie.srt", data))
			if err != nil {
				t.Fatalf("ConvertSidecar: %v", err)
			}
			assertVTT(t, out, name != "latin1")
		})
	}
}

func TestConvertSidecarWithoutCaptions(t *testing.T) {
	path := writeSRT(t, t.TempDir(), "empty.srt", []byte("\n\n"))
	if _, err := ConvertSidecar(path); !errors.Is(err, services.ErrCaptionParse) {
		t.Fatalf("expected ErrCaptionParse, got %v", err)
	}
	if _, err := os.Stat(VTTPath(path)); err == nil {
		t.Fatal("vtt should not be written")
	}
}

func TestConvertDirectorySkipsFailuresAndExisting(t *testing.T) {
	dir := t.TempDir()
	writeSRT(t, dir, "a.srt", []byte(sampleSRT))
	writeSRT(t, dir, "b.srt", []byte(""))
	writeSRT(t, dir, "c.srt", []byte(sampleSRT))
	writeSRT(t, dir, "c.vtt", []byte("WEBVTT\n"))

	result, err := ConvertDirectory(dir, logging.NewNop())
	if err != nil {
		t.Fatalf("ConvertDirectory: %v", err)
	}
	if len(result.Converted) != 1 || filepath.Base(result.Converted[0]) != "a.vtt" {
		t.Fatalf("converted = %v", result.Converted)
	}
	if len(result.Failed) != 1 || filepath.Base(result.Failed[0]) != "b.srt" {
		t.Fatalf("failed = %v", result.Failed)
	}
	if len(result.Skipped) != 1 {
		t.Fatalf("skipped = %v", result.Skipped)
	}
}
