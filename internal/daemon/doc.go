// Package daemon coordinates the long-running reelhoused process.
//
// It wires configuration, the job queue, the library service and the workflow
// manager into a single lifecycle guarded by a flock-based single-instance
// lock, and serves the HTTP API: submission endpoints for the processing
// side, the library callback receiver, asset and job views, health, and
// Prometheus metrics.
//
// Keep orchestration here. Transcoding, subtitle work and asset state live in
// their own packages; handlers translate requests into calls on them and map
// service error markers onto HTTP status codes.
package daemon
