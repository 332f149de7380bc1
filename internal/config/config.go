package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory, bind address, and public URL configuration.
type Paths struct {
	LibraryDir string `toml:"library_dir"`
	TriageDir  string `toml:"triage_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
	// PublicURL is the externally reachable base URL of the daemon, used when
	// building callback URLs handed to the processing endpoint.
	PublicURL string `toml:"public_url"`
}

// Tools contains external binary locations.
type Tools struct {
	FFmpeg    string `toml:"ffmpeg"`
	FFprobe   string `toml:"ffprobe"`
	MediaInfo string `toml:"mediainfo"`
}

// Tier is one bitrate/height ceiling pair.
type Tier struct {
	BitRate int64 `toml:"bitrate"`
	Height  int   `toml:"height"`
}

// Transcode contains encoder settings and the output tiers.
type Transcode struct {
	Tier            string `toml:"tier"`
	Small           Tier   `toml:"small"`
	Large           Tier   `toml:"large"`
	Preset          string `toml:"preset"`
	AudioBitrate    string `toml:"audio_bitrate"`
	AudioSampleRate int    `toml:"audio_sample_rate"`
}

// Subtitles contains sidecar extraction settings.
type Subtitles struct {
	Languages              []string `toml:"languages"`
	DenyCodecs             []string `toml:"deny_codecs"`
	DefaultLanguage        string   `toml:"default_language"`
	OmitDefaultLanguageTag bool     `toml:"omit_default_language_tag"`
}

// Queue contains worker, timeout, and sweep settings for the job lanes.
type Queue struct {
	ConversionWorkers        int    `toml:"conversion_workers"`
	SubtitleWorkers          int    `toml:"subtitle_workers"`
	ConversionTimeoutMinutes int    `toml:"conversion_timeout_minutes"`
	SubtitleTimeoutMinutes   int    `toml:"subtitle_timeout_minutes"`
	PollIntervalSeconds      int    `toml:"poll_interval_seconds"`
	HeartbeatInterval        int    `toml:"heartbeat_interval"`
	HeartbeatTimeout         int    `toml:"heartbeat_timeout"`
	SweepSchedule            string `toml:"sweep_schedule"`
}

// Library contains settings for the asset catalogue and its callback receiver.
type Library struct {
	CallbackSecret      string   `toml:"callback_secret"`
	ProcessingURL       string   `toml:"processing_url"`
	AutoConvert         bool     `toml:"auto_convert"`
	AutoConvertSchedule string   `toml:"auto_convert_schedule"`
	VideoExtensions     []string `toml:"video_extensions"`
}

// Notifications contains configuration for ntfy operator alerts and webhook delivery.
type Notifications struct {
	NtfyURL        string `toml:"ntfy_url"`
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for reelhouse.
//
// Configuration sections by subsystem:
//   - Paths: library/triage/state directories, API bind address and public URL
//   - Tools: ffmpeg, ffprobe and mediainfo binaries
//   - Transcode: output tiers and encoder settings
//   - Subtitles: sidecar language allow-list and codec deny-list
//   - Queue: lane workers, job timeouts, heartbeat and stale sweep
//   - Library: callback secret, processing endpoint, auto-convert scan
//   - Notifications: ntfy alerts and HTTP timeouts
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Tools         Tools         `toml:"tools"`
	Transcode     Transcode     `toml:"transcode"`
	Subtitles     Subtitles     `toml:"subtitles"`
	Queue         Queue         `toml:"queue"`
	Library       Library       `toml:"library"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelhouse/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelhouse.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// LibraryDir and TriageDir are created on a best-effort basis so the daemon
// can run when external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, dir := range []string{c.Paths.LibraryDir, c.Paths.TriageDir} {
		if strings.TrimSpace(dir) != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
	}
	return nil
}

// QueuePath returns the SQLite database holding the job queue.
func (c *Config) QueuePath() string {
	return filepath.Join(c.Paths.StateDir, "queue.db")
}

// LibraryDBPath returns the SQLite database holding library assets.
func (c *Config) LibraryDBPath() string {
	return filepath.Join(c.Paths.StateDir, "library.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "reelhoused.lock")
}

// ActiveTier returns the bitrate/height ceilings for the configured tier.
func (c *Config) ActiveTier() Tier {
	return c.TierByName(c.Transcode.Tier)
}

// TierByName returns the small or large tier; unknown names fall back to small.
func (c *Config) TierByName(name string) Tier {
	if strings.EqualFold(strings.TrimSpace(name), TierLarge) {
		return c.Transcode.Large
	}
	return c.Transcode.Small
}

// ConversionTimeout returns the per-job timeout of the conversion lane.
func (c *Config) ConversionTimeout() time.Duration {
	return time.Duration(c.Queue.ConversionTimeoutMinutes) * time.Minute
}

// SubtitleTimeout returns the per-job timeout of the subtitles lane.
func (c *Config) SubtitleTimeout() time.Duration {
	return time.Duration(c.Queue.SubtitleTimeoutMinutes) * time.Minute
}

// ResolveLibraryPath joins a library-relative path with the library root and
// rejects paths that escape it.
func (c *Config) ResolveLibraryPath(rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", errors.New("path is empty")
	}
	var joined string
	if filepath.IsAbs(rel) {
		joined = filepath.Clean(rel)
	} else {
		joined = filepath.Join(c.Paths.LibraryDir, rel)
	}
	within, err := filepath.Rel(c.Paths.LibraryDir, joined)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the library", rel)
	}
	return joined, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ParseBitRate reads an ffmpeg-style bitrate such as "128k", "1.5M" or
// "96000" into bits per second.
func ParseBitRate(value string) (int64, error) {
	value = strings.TrimSpace(value)
	multiplier := 1.0
	if value != "" {
		switch value[len(value)-1] {
		case 'k', 'K':
			multiplier = 1e3
			value = value[:len(value)-1]
		case 'm', 'M':
			multiplier = 1e6
			value = value[:len(value)-1]
		}
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid bitrate %q", value)
	}
	return int64(n * multiplier), nil
}

// AudioBitRate returns transcode.audio_bitrate in bits per second, or zero
// when it does not parse.
func (c *Config) AudioBitRate() int64 {
	n, _ := ParseBitRate(c.Transcode.AudioBitrate)
	return n
}
