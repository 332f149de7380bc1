// Package ffprobe inspects media files with ffprobe and mediainfo.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Metadata: the planner-facing summary (format names, summed bitrate,
//     truncated duration, audio/video/subtitle streams)
//   - Inspector: memoising facade combining ffprobe and the mediainfo
//     streamability query
//
// Any tool failure or unparseable output is reported as services.ErrProbe
// with the captured stderr attached; callers treat it as fatal for the job.
package ffprobe
