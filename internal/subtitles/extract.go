package subtitles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"reelhouse/internal/config"
	"reelhouse/internal/fileutil"
	"reelhouse/internal/language"
	"reelhouse/internal/logging"
	"reelhouse/internal/media/ffprobe"
	"reelhouse/internal/services"
)

const stageName = "subtitles"

// CommandRunner executes an external command and returns its captured stderr.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}

// StreamInspector lists the subtitle streams of a media file.
type StreamInspector interface {
	Subtitles(ctx context.Context, path string) ([]ffprobe.SubtitleStream, error)
}

// Track is one extracted sidecar pair.
type Track struct {
	Stream  ffprobe.SubtitleStream
	SRTPath string
	VTTPath string
}

// Result lists the sidecars produced by Extract.
type Result struct {
	Input  string
	Tracks []Track
}

// Extractor writes subtitle sidecars next to a media file.
type Extractor struct {
	ffmpeg          string
	inspector       StreamInspector
	languages       []string
	denyCodecs      []string
	defaultLanguage string
	omitDefaultTag  bool
	logger          *slog.Logger
	run             CommandRunner
}

// ExtractorOption customises an Extractor.
type ExtractorOption func(*Extractor)

// WithCommandRunner overrides the ffmpeg runner (primarily for tests).
func WithCommandRunner(run CommandRunner) ExtractorOption {
	return func(e *Extractor) {
		if run != nil {
			e.run = run
		}
	}
}

// NewExtractor builds an Extractor from the subtitle configuration.
func NewExtractor(cfg *config.Config, inspector StreamInspector, logger *slog.Logger, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		ffmpeg:          cfg.Tools.FFmpeg,
		inspector:       inspector,
		languages:       cfg.Subtitles.Languages,
		denyCodecs:      cfg.Subtitles.DenyCodecs,
		defaultLanguage: cfg.Subtitles.DefaultLanguage,
		omitDefaultTag:  cfg.Subtitles.OmitDefaultLanguageTag,
		logger:          logging.NewComponentLogger(logger, "subtitles"),
		run:             execRunner,
	}
	if e.ffmpeg == "" {
		e.ffmpeg = "ffmpeg"
	}
	if e.defaultLanguage == "" {
		e.defaultLanguage = "eng"
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SidecarBase returns the path prefix shared by every sidecar of input.
func SidecarBase(input string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	for _, suffix := range []string{".original", ".converted", ".converting", ".small", ".large"} {
		if strings.HasSuffix(base, suffix) {
			return strings.TrimSuffix(base, suffix)
		}
	}
	return base
}

// SidecarPath returns the sidecar path for lang and ext ("srt" or "vtt").
func SidecarPath(base, lang, ext string, omitLanguage bool) string {
	if omitLanguage {
		return base + "." + ext
	}
	return base + "." + lang + "." + ext
}

func tempSidecar(path string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".extracting")
}

// Extract writes an SRT and a WebVTT sidecar for each selected track of input.
// An input without eligible tracks yields an empty Result.
func (e *Extractor) Extract(ctx context.Context, input string) (Result, error) {
	result := Result{Input: input}
	exists, err := fileutil.Exists(input)
	if err != nil {
		return result, services.Wrap(services.ErrSubtitleExtract, stageName, "stat", input, err)
	}
	if !exists {
		return result, services.Wrap(services.ErrNotFound, stageName, "stat", input, nil)
	}

	streams, err := e.inspector.Subtitles(ctx, input)
	if err != nil {
		return result, err
	}
	selected := SelectTracks(streams, e.languages, e.denyCodecs)
	logger := logging.WithContext(ctx, e.logger)
	attrs := append(
		logging.DecisionAttrs("subtitle_selection", strconv.Itoa(len(selected)), fmt.Sprintf("%d of %d streams eligible", len(selected), len(streams))),
		logging.String(logging.FieldEventType, "subtitle_selection"),
		logging.String("input", input),
	)
	logger.Info("subtitle tracks selected", logging.Args(attrs...)...)
	if len(selected) == 0 {
		return result, nil
	}

	base := SidecarBase(input)
	args := []string{"-hide_banner", "-loglevel", "warning", "-i", input}
	for _, stream := range selected {
		omit := e.omitDefaultTag && stream.Language == e.defaultLanguage
		track := Track{
			Stream:  stream,
			SRTPath: SidecarPath(base, stream.Language, "srt", omit),
			VTTPath: SidecarPath(base, stream.Language, "vtt", omit),
		}
		mapping := "0:" + strconv.Itoa(stream.Index)
		args = append(args,
			"-map", mapping, "-c:s", "srt", "-f", "srt", "-y", tempSidecar(track.SRTPath),
			"-map", mapping, "-c:s", "webvtt", "-f", "webvtt", "-y", tempSidecar(track.VTTPath),
		)
		result.Tracks = append(result.Tracks, track)
	}

	stderr, err := e.run(ctx, e.ffmpeg, args...)
	if err != nil {
		cleanupTemps(result.Tracks)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{Input: input}, services.Wrap(services.ErrTimeout, stageName, "ffmpeg", input, errors.Join(ctxErr, err))
		}
		wrapped := services.WithOutput(services.Wrap(services.ErrSubtitleExtract, stageName, "ffmpeg", input, err), string(stderr))
		logger.Error("subtitle extraction failed",
			logging.String(logging.FieldEventType, "subtitle_extract_failed"),
			logging.String(logging.FieldErrorKind, services.Kind(wrapped)),
			logging.String("stderr", strings.TrimSpace(string(stderr))),
			logging.Error(err),
		)
		return Result{Input: input}, wrapped
	}

	for _, track := range result.Tracks {
		for _, final := range []string{track.SRTPath, track.VTTPath} {
			if err := os.Rename(tempSidecar(final), final); err != nil {
				cleanupTemps(result.Tracks)
				return Result{Input: input}, services.Wrap(services.ErrSubtitleExtract, stageName, "finalize", final, err)
			}
		}
		logger.Info("subtitle sidecar written",
			logging.String(logging.FieldEventType, "subtitle_sidecar_written"),
			logging.String("language", track.Stream.Language),
			logging.String("language_name", language.DisplayName(track.Stream.Language)),
			logging.String("srt", track.SRTPath),
			logging.String("vtt", track.VTTPath),
		)
	}
	return result, nil
}

func cleanupTemps(tracks []Track) {
	for _, track := range tracks {
		_, _ = fileutil.RemoveIfExists(tempSidecar(track.SRTPath))
		_, _ = fileutil.RemoveIfExists(tempSidecar(track.VTTPath))
	}
}
