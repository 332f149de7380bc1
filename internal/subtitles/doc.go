// Package subtitles extracts text subtitle tracks into SRT/WebVTT sidecars and
// converts standalone SRT files to WebVTT for browser playback.
//
// Extraction keeps one track per allowed language (the first seen), skips
// image-based and deny-listed codecs, and writes every sidecar in a single
// ffmpeg invocation. Sidecar conversion detects the source encoding before
// parsing so Latin-1 and UTF-16 files convert as cleanly as UTF-8 ones.
package subtitles
