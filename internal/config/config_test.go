package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"reelhouse/internal/config"
)

func TestLoadDefaultConfigUsesEnvSecretAndExpandsPaths(t *testing.T) {
	t.Setenv("REELHOUSE_CALLBACK_SECRET", "env-secret-0123456789")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if cfg.Paths.LibraryDir != filepath.Join(tempHome, "library") {
		t.Fatalf("unexpected library dir: %q", cfg.Paths.LibraryDir)
	}
	wantState := filepath.Join(tempHome, ".local", "share", "reelhouse")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.PublicURL != "http://127.0.0.1:7487" {
		t.Fatalf("unexpected public url: %q", cfg.Paths.PublicURL)
	}
	if cfg.Library.ProcessingURL != cfg.Paths.PublicURL {
		t.Fatalf("expected processing url to default to public url, got %q", cfg.Library.ProcessingURL)
	}
	if cfg.Library.CallbackSecret != "env-secret-0123456789" {
		t.Fatalf("expected callback secret from env, got %q", cfg.Library.CallbackSecret)
	}
	if tier := cfg.ActiveTier(); tier.BitRate != 3_000_000 || tier.Height != 720 {
		t.Fatalf("unexpected default tier: %+v", tier)
	}
	if tier := cfg.TierByName("large"); tier.BitRate != 8_000_000 || tier.Height != 1080 {
		t.Fatalf("unexpected large tier: %+v", tier)
	}
	if got := cfg.ConversionTimeout().Hours(); got != 6 {
		t.Fatalf("expected 6h conversion timeout, got %v", got)
	}
	if strings.Join(cfg.Subtitles.Languages, ",") != "eng,fre,ger" {
		t.Fatalf("unexpected subtitle languages: %v", cfg.Subtitles.Languages)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir, cfg.Paths.LibraryDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "reelhouse.toml")

	type payload struct {
		Paths struct {
			LibraryDir string `toml:"library_dir"`
			PublicURL  string `toml:"public_url"`
		} `toml:"paths"`
		Transcode struct {
			Tier  string `toml:"tier"`
			Large struct {
				BitRate int64 `toml:"bitrate"`
				Height  int   `toml:"height"`
			} `toml:"large"`
		} `toml:"transcode"`
		Subtitles struct {
			Languages []string `toml:"languages"`
		} `toml:"subtitles"`
		Library struct {
			CallbackSecret string `toml:"callback_secret"`
		} `toml:"library"`
	}
	custom := payload{}
	custom.Paths.LibraryDir = filepath.Join(tempDir, "media")
	custom.Paths.PublicURL = "http://media.lan:7487/"
	custom.Transcode.Tier = "LARGE"
	custom.Transcode.Large.BitRate = 6_000_000
	custom.Transcode.Large.Height = 1080
	custom.Subtitles.Languages = []string{" ENG ", "spa", "eng"}
	custom.Library.CallbackSecret = "file-secret-0123456789"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Transcode.Tier != config.TierLarge {
		t.Fatalf("expected normalized tier, got %q", cfg.Transcode.Tier)
	}
	if tier := cfg.ActiveTier(); tier.BitRate != 6_000_000 {
		t.Fatalf("expected large tier override, got %+v", tier)
	}
	if cfg.Paths.PublicURL != "http://media.lan:7487" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Paths.PublicURL)
	}
	if strings.Join(cfg.Subtitles.Languages, ",") != "eng,spa" {
		t.Fatalf("expected deduplicated languages, got %v", cfg.Subtitles.Languages)
	}
}

func TestResolveLibraryPath(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LibraryDir = "/srv/library"

	got, err := cfg.ResolveLibraryPath("movies/movie.original.mkv")
	if err != nil {
		t.Fatalf("ResolveLibraryPath failed: %v", err)
	}
	if got != "/srv/library/movies/movie.original.mkv" {
		t.Fatalf("unexpected resolved path %q", got)
	}
	for _, bad := range []string{"", "../etc/passwd", "/etc/passwd"} {
		if _, err := cfg.ResolveLibraryPath(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseBitRate(t *testing.T) {
	tests := map[string]int64{"128k": 128_000, "1.5M": 1_500_000, "96000": 96_000, " 192K ": 192_000}
	for input, want := range tests {
		got, err := config.ParseBitRate(input)
		if err != nil || got != want {
			t.Fatalf("ParseBitRate(%q) = %d, %v; want %d", input, got, err, want)
		}
	}
	for _, bad := range []string{"", "k", "-128k", "fast"} {
		if _, err := config.ParseBitRate(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Transcode.Small.BitRate != 3_000_000 || cfg.Transcode.Large.Height != 1080 {
		t.Fatalf("unexpected sample tiers: %+v", cfg.Transcode)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	valid := func() config.Config {
		cfg := config.Default()
		cfg.Library.CallbackSecret = "0123456789abcdef"
		cfg.Paths.PublicURL = "http://127.0.0.1:7487"
		return cfg
	}
	base := valid()
	if err := base.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cases := map[string]func(*config.Config){
		"missing secret":     func(c *config.Config) { c.Library.CallbackSecret = "" },
		"short secret":       func(c *config.Config) { c.Library.CallbackSecret = "short" },
		"unknown tier":       func(c *config.Config) { c.Transcode.Tier = "medium" },
		"zero bitrate":       func(c *config.Config) { c.Transcode.Small.BitRate = 0 },
		"zero workers":       func(c *config.Config) { c.Queue.ConversionWorkers = 0 },
		"heartbeat timeout":  func(c *config.Config) { c.Queue.HeartbeatTimeout = c.Queue.HeartbeatInterval },
		"bad sweep schedule": func(c *config.Config) { c.Queue.SweepSchedule = "whenever" },
		"bad language":       func(c *config.Config) { c.Subtitles.Languages = []string{"en"} },
		"bad public url":     func(c *config.Config) { c.Paths.PublicURL = "media.lan" },
		"bad audio bitrate":  func(c *config.Config) { c.Transcode.AudioBitrate = "loud" },
		"audio above cap":    func(c *config.Config) { c.Transcode.AudioBitrate = "20M" },
	}
	for name, mutate := range cases {
		cfg := valid()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
