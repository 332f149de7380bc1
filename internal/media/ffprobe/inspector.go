package ffprobe

import (
	"context"
	"fmt"
	"os"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"reelhouse/internal/services"
)

const inspectionTTL = 10 * time.Minute

// Inspection bundles the metadata and streamability answer for one file.
type Inspection struct {
	Metadata   Metadata
	Streamable bool
}

// Inspector probes files with ffprobe and mediainfo and memoises results per
// (path, size, mtime) so an unchanged file is only probed once.
type Inspector struct {
	ffprobe         string
	mediainfo       string
	defaultLanguage string
	run             Runner
	cache           *gocache.Cache
}

// InspectorOption customises an Inspector.
type InspectorOption func(*Inspector)

// WithRunner swaps the command runner, primarily for tests.
func WithRunner(run Runner) InspectorOption {
	return func(i *Inspector) {
		if run != nil {
			i.run = run
		}
	}
}

// WithDefaultLanguage sets the language assigned to untagged subtitle streams.
func WithDefaultLanguage(lang string) InspectorOption {
	return func(i *Inspector) {
		if lang != "" {
			i.defaultLanguage = lang
		}
	}
}

// NewInspector constructs an Inspector for the given binaries.
func NewInspector(ffprobeBinary, mediainfoBinary string, opts ...InspectorOption) *Inspector {
	inspector := &Inspector{
		ffprobe:         ffprobeBinary,
		mediainfo:       mediainfoBinary,
		defaultLanguage: "eng",
		run:             ExecRunner,
		cache:           gocache.New(inspectionTTL, 2*inspectionTTL),
	}
	for _, opt := range opts {
		opt(inspector)
	}
	return inspector
}

// Inspect returns metadata and the streamability answer for path.
func (i *Inspector) Inspect(ctx context.Context, path string) (Inspection, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Inspection{}, services.Wrap(services.ErrNotFound, "inspect", "stat", path, err)
		}
		return Inspection{}, services.Wrap(services.ErrProbe, "inspect", "stat", path, err)
	}
	key := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	if cached, ok := i.cache.Get(key); ok {
		return cached.(Inspection), nil
	}

	result, err := inspectWith(ctx, i.run, i.ffprobe, path)
	if err != nil {
		return Inspection{}, err
	}
	streamable, err := streamableWith(ctx, i.run, i.mediainfo, path)
	if err != nil {
		return Inspection{}, err
	}
	inspection := Inspection{
		Metadata:   Describe(result, i.defaultLanguage),
		Streamable: streamable,
	}
	if inspection.Metadata.Path == "" {
		inspection.Metadata.Path = path
	}
	i.cache.Set(key, inspection, gocache.DefaultExpiration)
	return inspection, nil
}

// Subtitles returns the subtitle streams of path.
func (i *Inspector) Subtitles(ctx context.Context, path string) ([]SubtitleStream, error) {
	result, err := inspectWith(ctx, i.run, i.ffprobe, path, "-select_streams", "s")
	if err != nil {
		return nil, err
	}
	return Describe(result, i.defaultLanguage).Subtitles, nil
}

// Forget drops any memoised inspection for path.
func (i *Inspector) Forget(path string) {
	for key := range i.cache.Items() {
		if len(key) > len(path) && key[:len(path)] == path && key[len(path)] == '|' {
			i.cache.Delete(key)
		}
	}
}
