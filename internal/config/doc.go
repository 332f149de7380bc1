// Package config loads, normalizes, and validates reelhouse configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// REELHOUSE_CALLBACK_SECRET. The Config type centralizes every knob the daemon
// and CLI need: library and triage roots, tool binaries, output tiers, lane
// timeouts, and the callback secret.
package config
