package config

const (
	TierSmall = "small"
	TierLarge = "large"
)

const (
	defaultLibraryDir          = "~/library"
	defaultTriageDir           = "~/downloads"
	defaultStateDir            = "~/.local/share/reelhouse"
	defaultLogDir              = "~/.local/share/reelhouse/logs"
	defaultAPIBind             = "127.0.0.1:7487"
	defaultSmallBitRate        = 3_000_000
	defaultSmallHeight         = 720
	defaultLargeBitRate        = 8_000_000
	defaultLargeHeight         = 1080
	defaultPreset              = "slow"
	defaultAudioBitrate        = "128k"
	defaultAudioSampleRate     = 48000
	defaultSubtitleLanguage    = "eng"
	defaultConversionTimeout   = 360
	defaultSubtitleTimeout     = 45
	defaultPollInterval        = 5
	defaultHeartbeatInterval   = 15
	defaultHeartbeatTimeout    = 120
	defaultSweepSchedule       = "@every 1m"
	defaultAutoConvertSchedule = "@every 30s"
	defaultNtfyURL             = "https://ntfy.sh"
	defaultRequestTimeout      = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

var (
	defaultSubtitleLanguages = []string{"eng", "fre", "ger"}
	defaultDenyCodecs        = []string{"dvd_subtitle", "hdmv_pgs_subtitle", "dvb_subtitle", "dvb_teletext", "eia_608", "ass"}
	defaultVideoExtensions   = []string{".mkv", ".mp4", ".m4v", ".avi", ".mov", ".webm", ".ts"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			TriageDir:  defaultTriageDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Tools: Tools{
			FFmpeg:    "ffmpeg",
			FFprobe:   "ffprobe",
			MediaInfo: "mediainfo",
		},
		Transcode: Transcode{
			Tier:            TierSmall,
			Small:           Tier{BitRate: defaultSmallBitRate, Height: defaultSmallHeight},
			Large:           Tier{BitRate: defaultLargeBitRate, Height: defaultLargeHeight},
			Preset:          defaultPreset,
			AudioBitrate:    defaultAudioBitrate,
			AudioSampleRate: defaultAudioSampleRate,
		},
		Subtitles: Subtitles{
			Languages:       append([]string(nil), defaultSubtitleLanguages...),
			DenyCodecs:      append([]string(nil), defaultDenyCodecs...),
			DefaultLanguage: defaultSubtitleLanguage,
		},
		Queue: Queue{
			ConversionWorkers:        1,
			SubtitleWorkers:          1,
			ConversionTimeoutMinutes: defaultConversionTimeout,
			SubtitleTimeoutMinutes:   defaultSubtitleTimeout,
			PollIntervalSeconds:      defaultPollInterval,
			HeartbeatInterval:        defaultHeartbeatInterval,
			HeartbeatTimeout:         defaultHeartbeatTimeout,
			SweepSchedule:            defaultSweepSchedule,
		},
		Library: Library{
			AutoConvertSchedule: defaultAutoConvertSchedule,
			VideoExtensions:     append([]string(nil), defaultVideoExtensions...),
		},
		Notifications: Notifications{
			NtfyURL:        defaultNtfyURL,
			RequestTimeout: defaultRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
