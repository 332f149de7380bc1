package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateLibrary(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		return errors.New("paths.library_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	if !strings.HasPrefix(c.Paths.PublicURL, "http://") && !strings.HasPrefix(c.Paths.PublicURL, "https://") {
		return fmt.Errorf("paths.public_url must be an http(s) URL, got %q", c.Paths.PublicURL)
	}
	return nil
}

func (c *Config) validateTranscode() error {
	switch c.Transcode.Tier {
	case TierSmall, TierLarge:
	default:
		return fmt.Errorf("transcode.tier must be %q or %q, got %q", TierSmall, TierLarge, c.Transcode.Tier)
	}
	for name, tier := range map[string]Tier{"small": c.Transcode.Small, "large": c.Transcode.Large} {
		if tier.BitRate <= 0 {
			return fmt.Errorf("transcode.%s.bitrate must be positive", name)
		}
		if tier.Height <= 0 {
			return fmt.Errorf("transcode.%s.height must be positive", name)
		}
	}
	audio, err := ParseBitRate(c.Transcode.AudioBitrate)
	if err != nil {
		return fmt.Errorf("transcode.audio_bitrate: %w", err)
	}
	for name, tier := range map[string]Tier{"small": c.Transcode.Small, "large": c.Transcode.Large} {
		if audio >= tier.BitRate {
			return fmt.Errorf("transcode.audio_bitrate must be below transcode.%s.bitrate", name)
		}
	}
	return nil
}

func (c *Config) validateSubtitles() error {
	for _, lang := range c.Subtitles.Languages {
		if len(lang) != 3 {
			return fmt.Errorf("subtitles.languages entries must be ISO 639-2 codes, got %q", lang)
		}
	}
	if len(c.Subtitles.DefaultLanguage) != 3 {
		return fmt.Errorf("subtitles.default_language must be an ISO 639-2 code, got %q", c.Subtitles.DefaultLanguage)
	}
	return nil
}

func (c *Config) validateQueue() error {
	if err := ensurePositiveMap(map[string]int{
		"queue.conversion_workers":         c.Queue.ConversionWorkers,
		"queue.subtitle_workers":           c.Queue.SubtitleWorkers,
		"queue.conversion_timeout_minutes": c.Queue.ConversionTimeoutMinutes,
		"queue.subtitle_timeout_minutes":   c.Queue.SubtitleTimeoutMinutes,
		"queue.poll_interval_seconds":      c.Queue.PollIntervalSeconds,
		"queue.heartbeat_interval":         c.Queue.HeartbeatInterval,
		"queue.heartbeat_timeout":          c.Queue.HeartbeatTimeout,
	}); err != nil {
		return err
	}
	if c.Queue.HeartbeatTimeout <= c.Queue.HeartbeatInterval {
		return errors.New("queue.heartbeat_timeout must be greater than queue.heartbeat_interval")
	}
	if _, err := cron.ParseStandard(c.Queue.SweepSchedule); err != nil {
		return fmt.Errorf("queue.sweep_schedule: %w", err)
	}
	return nil
}

func (c *Config) validateLibrary() error {
	if c.Library.CallbackSecret == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/reelhouse/config.toml"
		}
		return fmt.Errorf("library.callback_secret is required. Set REELHOUSE_CALLBACK_SECRET or edit %s (create with 'reelhouse config init')", defaultPath)
	}
	if len(c.Library.CallbackSecret) < 16 {
		return errors.New("library.callback_secret must be at least 16 characters")
	}
	if c.Library.AutoConvert {
		if _, err := cron.ParseStandard(c.Library.AutoConvertSchedule); err != nil {
			return fmt.Errorf("library.auto_convert_schedule: %w", err)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
