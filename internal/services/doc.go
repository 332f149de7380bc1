// Package services defines shared utilities consumed by the job handlers,
// the HTTP API, and the library service.
//
// It owns the error taxonomy (probe, encode, subtitle extraction, caption
// parsing, connection, not-found and friends) plus the Wrap helper that tags
// failures with a marker for errors.Is classification. Context helpers stamp
// job identifiers, lanes, stages, and correlation ids so loggers can lift them
// without threading extra parameters.
package services
