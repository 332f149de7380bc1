package stage

import (
	"strings"

	"reelhouse/internal/fileutil"
	"reelhouse/internal/queue"
	"reelhouse/internal/services"
)

// RequireInput verifies the job names an input file that still exists.
// On failure it returns a services error suitable for handler Prepare methods.
func RequireInput(stageName string, job *queue.Job) error {
	if job == nil || strings.TrimSpace(job.Input) == "" {
		return services.Wrap(services.ErrValidation, stageName, "prepare", "job has no input path", nil)
	}
	exists, err := fileutil.Exists(job.Input)
	if err != nil {
		return services.Wrap(services.ErrValidation, stageName, "prepare", "stat input "+job.Input, err)
	}
	if !exists {
		return services.Wrap(services.ErrNotFound, stageName, "prepare", "input "+job.Input+" does not exist", nil)
	}
	return nil
}
