// Package queue persists transcode and subtitle jobs in SQLite.
//
// Jobs live in one of two lanes (conversion and subtitles) and move from
// queued to running to a terminal succeeded or failed state. Claiming is a
// compare-and-swap on status so a job is only ever run by one worker, and the
// callback_state column is advanced the same way so the completion webhook
// for a job is delivered at most once.
//
// Terminal jobs stay in the table for inspection until pruned. Schema changes
// bump schemaVersion; operators delete queue.db to adopt a new schema.
package queue
