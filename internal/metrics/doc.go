// Package metrics provides Prometheus instrumentation for reelhouse.
//
// All metrics are prefixed with "reelhouse_" and registered on the default
// registry through promauto, so importing the package is enough to expose
// them on the daemon's /metrics endpoint.
//
// # Metric Categories
//
// ## HTTP Metrics
//   - HTTPRequestsTotal: requests by method, route template and status
//   - HTTPRequestDuration: request duration by method and route template
//   - HTTPRequestsInFlight: requests currently being served
//
// ## Job Metrics
//   - JobsTotal: finished jobs by kind and status
//   - JobDuration: job run time by kind
//   - JobsInProgress: running jobs by lane
//   - StaleJobsFailed: jobs failed by the heartbeat sweep
//   - QueueJobs: queue depth by lane and status, refreshed on status reads
//
// ## Transcode Metrics
//   - TranscodeDecisions: planner decisions by strategy
//
// ## Callback Metrics
//   - CallbacksTotal: webhook deliveries by outcome and result
//   - CallbacksReceived: callbacks accepted or rejected by the library
//   - SubmissionsTotal: library submissions by result
package metrics
