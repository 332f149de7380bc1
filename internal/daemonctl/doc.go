// Package daemonctl starts and stops a background reelhoused process on
// behalf of the CLI, using the HTTP health endpoint for liveness and the pid
// file for signalling.
package daemonctl
