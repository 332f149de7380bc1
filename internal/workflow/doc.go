// Package workflow runs queued jobs through their stage handlers.
//
// The Manager starts a pool of workers per lane (conversion and subtitles).
// Each worker claims the oldest queued job of its lane, runs the handler for
// the job kind under the job timeout while a heartbeat goroutine keeps the
// row fresh, and records the outcome. Every failure path (handler error,
// timeout, panic, shutdown, or an expired heartbeat found by the stale sweep)
// goes through handleJobFailure, which marks the job failed and delivers the
// failure callback at most once. Jobs are never retried automatically.
//
// The stale sweep runs at start and then on the cron schedule configured in
// queue.sweep_schedule.
package workflow
