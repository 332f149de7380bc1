package subtitles

import (
	"slices"
	"strings"

	"reelhouse/internal/media/ffprobe"
)

// SelectTracks picks at most one stream per language from streams. Bitmap
// streams, deny-listed codecs and languages outside allow are skipped. An empty
// allow list accepts every language.
func SelectTracks(streams []ffprobe.SubtitleStream, allow, denyCodecs []string) []ffprobe.SubtitleStream {
	seen := make(map[string]struct{}, len(streams))
	selected := make([]ffprobe.SubtitleStream, 0, len(streams))
	for _, stream := range streams {
		if stream.Bitmap {
			continue
		}
		if slices.Contains(denyCodecs, strings.ToLower(stream.Codec)) {
			continue
		}
		lang := strings.ToLower(stream.Language)
		if len(allow) > 0 && !slices.Contains(allow, lang) {
			continue
		}
		if _, ok := seen[lang]; ok {
			continue
		}
		seen[lang] = struct{}{}
		selected = append(selected, stream)
	}
	return selected
}
