package ffprobe

import (
	"math"
	"strings"

	"reelhouse/internal/language"
)

// Metadata is the planner-facing summary of an inspected file.
type Metadata struct {
	Path        string
	FormatName  string
	FormatNames []string
	// BitRate is the sum of stream bitrates, falling back to the container
	// bitrate when no stream reports one.
	BitRate         int64
	DurationSeconds int
	Video           []VideoStream
	Audio           []AudioStream
	Subtitles       []SubtitleStream
}

// VideoStream is one video stream of an inspected file.
type VideoStream struct {
	Index       int
	Codec       string
	PixelFormat string
	Width       int
	Height      int
	// BitRate is 0 when the stream reports none.
	BitRate int64
}

// AudioStream is one audio stream of an inspected file.
type AudioStream struct {
	Index      int
	Codec      string
	SampleRate int
	Channels   int
	BitRate    int64
}

// SubtitleStream is one subtitle stream of an inspected file.
type SubtitleStream struct {
	Index    int
	Codec    string
	Language string
	// Bitmap is true when the stream carries pixel dimensions (image-based subtitles).
	Bitmap bool
}

// Describe converts a raw ffprobe result into Metadata. Subtitle languages are
// normalised to ISO 639-2/B with defaultLanguage used for untagged streams.
func Describe(r Result, defaultLanguage string) Metadata {
	meta := Metadata{
		Path:       r.Format.Filename,
		FormatName: r.Format.FormatName,
		BitRate:    r.StreamBitRateSum(),
	}
	for _, name := range strings.Split(r.Format.FormatName, ",") {
		if name = strings.TrimSpace(name); name != "" {
			meta.FormatNames = append(meta.FormatNames, strings.ToLower(name))
		}
	}
	if meta.BitRate == 0 {
		meta.BitRate = r.BitRate()
	}
	if duration := r.DurationSeconds(); !math.IsNaN(duration) && duration > 0 {
		meta.DurationSeconds = int(duration)
	}
	if defaultLanguage == "" {
		defaultLanguage = "eng"
	}

	for _, stream := range r.Streams {
		codec := strings.ToLower(strings.TrimSpace(stream.CodecName))
		switch strings.ToLower(stream.CodecType) {
		case "video":
			// Cover art is exposed as a single-frame mjpeg/png video stream.
			if codec == "mjpeg" || codec == "png" {
				continue
			}
			meta.Video = append(meta.Video, VideoStream{
				Index:       stream.Index,
				Codec:       codec,
				PixelFormat: stream.PixFmt,
				Width:       stream.Width,
				Height:      stream.Height,
				BitRate:     stream.StreamBitRate(),
			})
		case "audio":
			meta.Audio = append(meta.Audio, AudioStream{
				Index:      stream.Index,
				Codec:      codec,
				SampleRate: parseInt(stream.SampleRate),
				Channels:   stream.Channels,
				BitRate:    stream.StreamBitRate(),
			})
		case "subtitle":
			meta.Subtitles = append(meta.Subtitles, describeSubtitle(stream, defaultLanguage))
		}
	}
	return meta
}

func describeSubtitle(stream Stream, defaultLanguage string) SubtitleStream {
	lang := language.ToBibliographic(language.ExtractFromTags(stream.Tags))
	if lang == "" || lang == "und" {
		lang = defaultLanguage
	}
	return SubtitleStream{
		Index:    stream.Index,
		Codec:    strings.ToLower(strings.TrimSpace(stream.CodecName)),
		Language: lang,
		Bitmap:   stream.Width > 0 || stream.Height > 0,
	}
}

// HasFormat reports whether name is one of the container's format names.
func (m Metadata) HasFormat(name string) bool {
	for _, candidate := range m.FormatNames {
		if candidate == name {
			return true
		}
	}
	return false
}

// MaxHeight returns the tallest video stream height.
func (m Metadata) MaxHeight() int {
	height := 0
	for _, video := range m.Video {
		height = max(height, video.Height)
	}
	return height
}

// AudioBitRate sums the reported audio stream bitrates.
func (m Metadata) AudioBitRate() int64 {
	var total int64
	for _, audio := range m.Audio {
		total += audio.BitRate
	}
	return total
}

// VideoBitRate returns the primary video stream's bitrate. When the stream
// reports none it is estimated as the total minus the known audio bitrate.
func (m Metadata) VideoBitRate() int64 {
	if len(m.Video) > 0 && m.Video[0].BitRate > 0 {
		return m.Video[0].BitRate
	}
	if rest := m.BitRate - m.AudioBitRate(); rest > 0 {
		return rest
	}
	return m.BitRate
}
