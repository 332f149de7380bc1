package config

import (
	"fmt"
	"os"
	"strings"

	"reelhouse/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeTranscode()
	c.normalizeSubtitles()
	c.normalizeQueue()
	c.normalizeLibrary()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if c.Paths.TriageDir, err = expandPath(c.Paths.TriageDir); err != nil {
		return fmt.Errorf("paths.triage_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("REELHOUSE_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	c.Paths.PublicURL = strings.TrimRight(strings.TrimSpace(c.Paths.PublicURL), "/")
	if c.Paths.PublicURL == "" {
		c.Paths.PublicURL = "http://" + c.Paths.APIBind
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = firstNonEmpty(c.Tools.FFmpeg, "ffmpeg")
	c.Tools.FFprobe = firstNonEmpty(c.Tools.FFprobe, "ffprobe")
	c.Tools.MediaInfo = firstNonEmpty(c.Tools.MediaInfo, "mediainfo")
}

func (c *Config) normalizeTranscode() {
	c.Transcode.Tier = strings.ToLower(strings.TrimSpace(c.Transcode.Tier))
	if c.Transcode.Tier == "" {
		c.Transcode.Tier = TierSmall
	}
	c.Transcode.Preset = firstNonEmpty(c.Transcode.Preset, defaultPreset)
	c.Transcode.AudioBitrate = firstNonEmpty(c.Transcode.AudioBitrate, defaultAudioBitrate)
	if c.Transcode.AudioSampleRate <= 0 {
		c.Transcode.AudioSampleRate = defaultAudioSampleRate
	}
}

func (c *Config) normalizeSubtitles() {
	c.Subtitles.Languages = language.NormalizeList(c.Subtitles.Languages)
	if len(c.Subtitles.Languages) == 0 {
		c.Subtitles.Languages = append([]string(nil), defaultSubtitleLanguages...)
	}
	c.Subtitles.DenyCodecs = normalizeList(c.Subtitles.DenyCodecs, nil, strings.ToLower)
	c.Subtitles.DefaultLanguage = language.ToBibliographic(c.Subtitles.DefaultLanguage)
	if c.Subtitles.DefaultLanguage == "" {
		c.Subtitles.DefaultLanguage = defaultSubtitleLanguage
	}
}

func (c *Config) normalizeQueue() {
	c.Queue.SweepSchedule = firstNonEmpty(c.Queue.SweepSchedule, defaultSweepSchedule)
}

func (c *Config) normalizeLibrary() {
	c.Library.CallbackSecret = strings.TrimSpace(c.Library.CallbackSecret)
	if c.Library.CallbackSecret == "" {
		if value, ok := os.LookupEnv("REELHOUSE_CALLBACK_SECRET"); ok {
			c.Library.CallbackSecret = strings.TrimSpace(value)
		}
	}
	c.Library.ProcessingURL = strings.TrimRight(strings.TrimSpace(c.Library.ProcessingURL), "/")
	if c.Library.ProcessingURL == "" {
		c.Library.ProcessingURL = c.Paths.PublicURL
	}
	c.Library.AutoConvertSchedule = firstNonEmpty(c.Library.AutoConvertSchedule, defaultAutoConvertSchedule)
	c.Library.VideoExtensions = normalizeList(c.Library.VideoExtensions, defaultVideoExtensions, func(ext string) string {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		return ext
	})
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyURL = strings.TrimRight(firstNonEmpty(c.Notifications.NtfyURL, defaultNtfyURL), "/")
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "console", "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func normalizeList(values, fallback []string, transform func(string) string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := strings.TrimSpace(value)
		if normalized == "" {
			continue
		}
		normalized = transform(normalized)
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	if len(out) == 0 && len(fallback) > 0 {
		return append([]string(nil), fallback...)
	}
	return out
}

func firstNonEmpty(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
