package ffprobe

import (
	"context"
	"strings"

	"reelhouse/internal/services"
)

// Streamable asks mediainfo whether the container's index (moov atom) sits in
// front of the media data so playback can start before the download finishes.
// Tool failures return ErrProbe rather than assuming either answer.
func Streamable(ctx context.Context, binary string, path string) (bool, error) {
	return streamableWith(ctx, ExecRunner, binary, path)
}

func streamableWith(ctx context.Context, run Runner, binary, path string) (bool, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "mediainfo"
	}
	stdout, stderr, err := run(ctx, binary, "--Inform=General;%IsStreamable%", path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, services.Wrap(services.ErrTimeout, "mediainfo", "streamable", path, ctxErr)
		}
		wrapped := services.Wrap(services.ErrProbe, "mediainfo", "streamable", path, err)
		return false, services.WithOutput(wrapped, string(stderr))
	}
	return strings.TrimSpace(string(stdout)) == "Yes", nil
}
