// Package stage defines the contract between the workflow manager and the
// handlers that carry out each kind of queued job.
package stage

import (
	"context"

	"reelhouse/internal/queue"
)

// Handler describes the contract the workflow manager needs from each job kind.
type Handler interface {
	Prepare(context.Context, *queue.Job) error
	Execute(context.Context, *queue.Job) error
	HealthCheck(context.Context) Health
}
