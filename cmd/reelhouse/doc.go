// Package main hosts the reelhouse CLI entrypoint and command graph.
//
// Commands translate terminal invocations into calls against the daemon's
// HTTP API: job submission and inspection, library asset management, and
// daemon lifecycle control. Configuration resolution and client construction
// live in the command context so subcommands only render results.
package main
