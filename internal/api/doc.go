// Package api defines wire-format types and converters for the HTTP API, plus
// the client the CLI and the library use to talk to a reelhoused daemon.
//
// # Key Types
//
// ConvertRequest / InputRequest: submission bodies for /convert,
// /extractSubtitles and /convertSubtitles.
//
// Job: transport representation of a queued job with its lane, status and
// callback delivery state.
//
// Asset: transport representation of a library asset with both its stored
// and effective conversion status.
//
// HealthResponse: workflow state, queue counts, stage health and external
// tool availability.
//
// # Converters
//
// FromJob: queue.Job -> Job.
//
// FromStatusSummary: workflow.StatusSummary -> WorkflowStatus.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Enums are exposed as lowercase strings and
// timestamps use RFC3339 with milliseconds. Error responses share one shape,
// ErrorResponse, whose Kind mirrors services.Kind so clients can map them back
// onto the error markers.
package api
