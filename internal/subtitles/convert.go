package subtitles

import (
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/asticode/go-astisub"
	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"reelhouse/internal/fileutil"
	"reelhouse/internal/logging"
	"reelhouse/internal/services"
)

// VTTPath returns the WebVTT sidecar path for an SRT file.
func VTTPath(srtPath string) string {
	return strings.TrimSuffix(srtPath, filepath.Ext(srtPath)) + ".vtt"
}

// ConvertSidecar converts the SRT file at path to a WebVTT file beside it and
// returns the written path.
func ConvertSidecar(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, stageName, "read", path, err)
		}
		return "", services.Wrap(services.ErrCaptionParse, stageName, "read", path, err)
	}
	text, err := decodeText(data)
	if err != nil {
		return "", services.Wrap(services.ErrCaptionParse, stageName, "decode", path, err)
	}

	subs, err := astisub.ReadFromSRT(bytes.NewReader(text))
	if err != nil {
		return "", services.Wrap(services.ErrCaptionParse, stageName, "parse", path, err)
	}
	if subs == nil || len(subs.Items) == 0 {
		return "", services.Wrap(services.ErrCaptionParse, stageName, "parse", "no captions found in "+path, nil)
	}

	var buf bytes.Buffer
	if err := subs.WriteToWebVTT(&buf); err != nil {
		return "", services.Wrap(services.ErrCaptionParse, stageName, "write", path, err)
	}
	target := VTTPath(path)
	tmp := filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+".converting")
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return "", services.Wrap(services.ErrCaptionParse, stageName, "write", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", services.Wrap(services.ErrCaptionParse, stageName, "rename", target, err)
	}
	return target, nil
}

// decodeText returns data as UTF-8 without a byte-order mark.
func decodeText(data []byte) ([]byte, error) {
	fallback := detectEncoding(data)
	out, _, err := transform.Bytes(unicode.BOMOverride(fallback.NewDecoder()), data)
	if err != nil {
		return nil, err
	}
	return bytes.ReplaceAll(out, []byte("\r\n"), []byte("\n")), nil
}

func detectEncoding(data []byte) encoding.Encoding {
	if utf8.Valid(data) {
		return unicode.UTF8
	}
	if best, err := chardet.NewTextDetector().DetectBest(data); err == nil && best != nil {
		if enc, err := htmlindex.Get(best.Charset); err == nil {
			return enc
		}
	}
	return charmap.Windows1252
}

// DirectoryResult summarises a ConvertDirectory run.
type DirectoryResult struct {
	Converted []string
	Skipped   []string
	Failed    []string
}

// ConvertDirectory converts every SRT under dir that has no WebVTT sibling.
// Files that fail to parse are logged and skipped.
func ConvertDirectory(dir string, logger *slog.Logger) (DirectoryResult, error) {
	logger = logging.NewComponentLogger(logger, "subtitles")
	var result DirectoryResult
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result, services.Wrap(services.ErrNotFound, stageName, "stat", dir, err)
		}
		return result, services.Wrap(services.ErrCaptionParse, stageName, "stat", dir, err)
	}
	if !info.IsDir() {
		return result, services.Wrap(services.ErrValidation, stageName, "stat", dir+" is not a directory", nil)
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".srt") || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		exists, err := fileutil.Exists(VTTPath(path))
		if err != nil {
			return err
		}
		if exists {
			result.Skipped = append(result.Skipped, path)
			return nil
		}
		written, err := ConvertSidecar(path)
		if err != nil {
			result.Failed = append(result.Failed, path)
			logger.Warn("subtitle conversion failed; continuing",
				logging.String(logging.FieldEventType, "subtitle_convert_failed"),
				logging.String(logging.FieldErrorKind, services.Kind(err)),
				logging.String("path", path),
				logging.Error(err),
			)
			return nil
		}
		result.Converted = append(result.Converted, written)
		return nil
	})
	if err != nil {
		return result, services.Wrap(services.ErrCaptionParse, stageName, "walk", dir, err)
	}
	logger.Info("subtitle directory converted",
		logging.String(logging.FieldEventType, "subtitle_directory_converted"),
		logging.String("dir", dir),
		logging.Int("converted", len(result.Converted)),
		logging.Int("skipped", len(result.Skipped)),
		logging.Int("failed", len(result.Failed)),
	)
	return result, nil
}
