package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"reelhouse/internal/services"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index      int               `json:"index"`
	CodecName  string            `json:"codec_name"`
	CodecType  string            `json:"codec_type"`
	CodecTag   string            `json:"codec_tag_string"`
	PixFmt     string            `json:"pix_fmt"`
	Duration   string            `json:"duration"`
	BitRate    string            `json:"bit_rate"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	SampleRate string            `json:"sample_rate"`
	Channels   int               `json:"channels"`
	Tags       map[string]string `json:"tags"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Runner executes a command and returns its stdout and stderr separately.
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// ExecRunner runs the command with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	return inspectWith(ctx, ExecRunner, binary, path)
}

func inspectWith(ctx context.Context, run Runner, binary, path string, extra ...string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, services.Wrap(services.ErrProbe, "ffprobe", "inspect", "empty path", nil)
	}

	args := []string{"-v", "error", "-hide_banner"}
	args = append(args, extra...)
	args = append(args, "-show_format", "-show_streams", "-of", "json", "--", path)
	stdout, stderr, err := run(ctx, binary, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, services.Wrap(services.ErrTimeout, "ffprobe", "inspect", path, ctxErr)
		}
		wrapped := services.Wrap(services.ErrProbe, "ffprobe", "inspect", path, err)
		return Result{}, services.WithOutput(wrapped, string(stderr))
	}

	var result Result
	if err := json.Unmarshal(stdout, &result); err != nil {
		return Result{}, services.Wrap(services.ErrProbe, "ffprobe", "parse", path, err)
	}
	if len(extra) == 0 && len(result.Streams) == 0 && strings.TrimSpace(result.Format.FormatName) == "" {
		return Result{}, services.Wrap(services.ErrProbe, "ffprobe", "parse", path, errors.New("no streams or format reported"))
	}
	return result, nil
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	return r.countType("video")
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	return r.countType("audio")
}

func (r Result) countType(codecType string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, codecType) {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	return nonNegativeInt(r.Format.Size)
}

// BitRate returns the container bitrate in bits per second, or 0 when unavailable.
func (r Result) BitRate() int64 {
	return nonNegativeInt(r.Format.BitRate)
}

// StreamBitRateSum returns the sum of every stream's bitrate. Streams that do
// not report one contribute nothing.
func (r Result) StreamBitRateSum() int64 {
	var total int64
	for _, stream := range r.Streams {
		total += stream.StreamBitRate()
	}
	return total
}

// StreamBitRate returns bit_rate, falling back to the BPS statistics tag that
// Matroska muxers write. It is 0 when neither is present.
func (s Stream) StreamBitRate() int64 {
	if rate := nonNegativeInt(s.BitRate); rate > 0 {
		return rate
	}
	for key, value := range s.Tags {
		if strings.EqualFold(key, "BPS") || strings.EqualFold(key, "BPS-eng") {
			return nonNegativeInt(value)
		}
	}
	return 0
}

func nonNegativeInt(value string) int64 {
	parsed := parseFloat(value)
	if math.IsNaN(parsed) || parsed < 0 {
		return 0
	}
	return int64(parsed)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}

func parseInt(value string) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return parsed
}

// String implements fmt.Stringer for log output.
func (s Stream) String() string {
	return fmt.Sprintf("#%d %s/%s", s.Index, s.CodecType, s.CodecName)
}
