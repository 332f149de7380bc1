// Package preflight provides readiness checks for the directories and
// HTTP endpoints reelhouse depends on.
//
// The CLI runs them from `reelhouse deps` and the daemon logs a summary at
// startup. A failed check never stops the daemon; it only explains why a
// later job or callback is likely to fail.
package preflight
