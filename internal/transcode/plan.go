package transcode

import (
	"fmt"
	"strings"

	"reelhouse/internal/config"
	"reelhouse/internal/media/ffprobe"
)

// Strategy names how an input is turned into the output.
type Strategy string

const (
	StrategyPassthrough Strategy = "passthrough"
	StrategyRepackage   Strategy = "repackage"
	StrategyReencode    Strategy = "reencode"
)

// Limits caps the output bitrate (bits per second) and video height.
// AudioBitRate is what each re-encoded audio stream costs.
type Limits struct {
	BitRate      int64
	Height       int
	AudioBitRate int64
}

// LimitsFromConfig returns the limits of the named tier. An empty name selects
// the configured active tier.
func LimitsFromConfig(cfg *config.Config, tier string) Limits {
	selected := cfg.ActiveTier()
	if strings.TrimSpace(tier) != "" {
		selected = cfg.TierByName(tier)
	}
	return Limits{BitRate: selected.BitRate, Height: selected.Height, AudioBitRate: cfg.AudioBitRate()}
}

// Decision is the outcome of Plan.
type Decision struct {
	Strategy Strategy
	// CopyVideo and CopyAudio are only meaningful for StrategyReencode.
	CopyVideo bool
	CopyAudio bool
	// VideoIndex is the input stream index of the primary video, or -1 when
	// the input has none. Cover art is never selected.
	VideoIndex int
	// VideoBitRate is the encoder target once audio has taken its share of
	// the cap.
	VideoBitRate int64
	// SubtitleStreams lists text subtitle stream indexes that can be muxed as mov_text.
	SubtitleStreams []int
	Limits          Limits
	Reasons         []string

	FormatName string
	BitRate    int64
	Height     int
	Streamable bool
}

// Reason joins the non-compliant dimensions for logging.
func (d Decision) Reason() string {
	if len(d.Reasons) == 0 {
		return "compliant"
	}
	return strings.Join(d.Reasons, "; ")
}

// Plan picks the cheapest strategy that yields an MP4 within limits.
func Plan(meta ffprobe.Metadata, streamable bool, limits Limits) Decision {
	decision := Decision{
		VideoIndex: -1,
		Limits:     limits,
		FormatName: meta.FormatName,
		BitRate:    meta.BitRate,
		Height:     meta.MaxHeight(),
		Streamable: streamable,
	}
	if len(meta.Video) > 0 {
		decision.VideoIndex = meta.Video[0].Index
	}

	containerOK := meta.HasFormat("mp4")
	videoOK := len(meta.Video) > 0 && meta.Video[0].Codec == "h264"
	audioOK := true
	for _, audio := range meta.Audio {
		if audio.Codec != "aac" {
			audioOK = false
			break
		}
	}
	bitrateOK := limits.BitRate <= 0 || meta.BitRate <= limits.BitRate
	heightOK := limits.Height <= 0 || decision.Height <= limits.Height

	if !containerOK {
		decision.Reasons = append(decision.Reasons, fmt.Sprintf("container %q is not mp4", meta.FormatName))
	}
	if !videoOK {
		decision.Reasons = append(decision.Reasons, fmt.Sprintf("video codec %q is not h264", primaryVideoCodec(meta)))
	}
	if !audioOK {
		decision.Reasons = append(decision.Reasons, "audio is not aac")
	}
	if !bitrateOK {
		decision.Reasons = append(decision.Reasons, fmt.Sprintf("bitrate %d exceeds %d", meta.BitRate, limits.BitRate))
	}
	if !heightOK {
		decision.Reasons = append(decision.Reasons, fmt.Sprintf("height %d exceeds %d", decision.Height, limits.Height))
	}

	switch {
	case len(decision.Reasons) == 0 && streamable:
		decision.Strategy = StrategyPassthrough
	case len(decision.Reasons) == 0:
		decision.Strategy = StrategyRepackage
		decision.Reasons = append(decision.Reasons, "not streamable")
	default:
		decision.Strategy = StrategyReencode
		decision.CopyAudio = audioOK
		decision.VideoBitRate = videoBudget(meta, limits, audioOK)
		videoRateOK := limits.BitRate <= 0 || meta.VideoBitRate() <= decision.VideoBitRate
		decision.CopyVideo = videoOK && heightOK && videoRateOK
		for _, sub := range meta.Subtitles {
			if !sub.Bitmap {
				decision.SubtitleStreams = append(decision.SubtitleStreams, sub.Index)
			}
		}
	}
	return decision
}

func primaryVideoCodec(meta ffprobe.Metadata) string {
	if len(meta.Video) == 0 {
		return "none"
	}
	return meta.Video[0].Codec
}

// videoBudget is the share of the bitrate cap left for video once the output
// audio is accounted for: copied streams at their reported rate, re-encoded
// streams at the configured audio bitrate. A cap the audio alone would use up
// leaves half of it to video.
func videoBudget(meta ffprobe.Metadata, limits Limits, copyAudio bool) int64 {
	if limits.BitRate <= 0 {
		return 0
	}
	audio := limits.AudioBitRate * int64(len(meta.Audio))
	if copyAudio {
		audio = meta.AudioBitRate()
	}
	if budget := limits.BitRate - audio; budget > 0 {
		return budget
	}
	return limits.BitRate / 2
}
