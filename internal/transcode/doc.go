// Package transcode decides how a video file becomes a browser-ready MP4 and
// carries that decision out with ffmpeg.
//
// Plan is a pure function over inspected metadata: a compliant, streamable
// file is linked through untouched, a compliant but non-streamable file is
// repackaged with its moov atom moved to the front, and anything else is
// re-encoded to H.264/AAC within the configured bitrate and height caps.
// Executor writes every ffmpeg output to a .converting.mp4 temp beside the
// destination and renames it into place only after a clean exit, so a
// failed run never disturbs an existing output.
package transcode
