// Package language provides language code normalization and mapping.
//
// Subtitle sidecars are named with ISO 639-2/B codes, so ffprobe tags and
// operator configuration (which may use 639-1, 639-2/T, or English words)
// are funnelled through ToBibliographic before any comparison.
package language
