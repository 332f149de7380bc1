package api

import (
	"slices"
	"time"

	"reelhouse/internal/deps"
	"reelhouse/internal/queue"
	"reelhouse/internal/stage"
	"reelhouse/internal/workflow"
)

// FromJob converts a queue job into its API representation.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}
	return Job{
		ID:            job.ID,
		CorrelationID: job.CorrelationID,
		Lane:          string(job.Lane),
		Kind:          string(job.Kind),
		Input:         job.Input,
		Output:        job.Output,
		Tier:          job.Tier,
		Status:        string(job.Status),
		TimeoutSec:    int64(job.Timeout / time.Second),
		EnqueuedAt:    FormatTime(job.EnqueuedAt),
		StartedAt:     formatTimePtr(job.StartedAt),
		FinishedAt:    formatTimePtr(job.FinishedAt),
		HeartbeatAt:   formatTimePtr(job.HeartbeatAt),
		WorkerID:      job.WorkerID,
		ErrorMessage:  job.Error,
		CallbackURL:   job.CallbackURL,
		CallbackState: string(job.CallbackState),
	}
}

// FromJobs converts a slice of queue jobs.
func FromJobs(jobs []*queue.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		out = append(out, FromJob(job))
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:     summary.Running,
		QueueStats:  QueueCounts(summary.QueueStats),
		StageHealth: StageHealthSlice(summary.StageHealth),
		LastError:   summary.LastError,
	}
	if len(summary.LaneWorkers) > 0 {
		wf.LaneWorkers = make(map[string]int, len(summary.LaneWorkers))
		for lane, workers := range summary.LaneWorkers {
			wf.LaneWorkers[string(lane)] = workers
		}
	}
	if summary.LastJob != nil {
		last := FromJob(summary.LastJob)
		wf.LastJob = &last
	}
	return wf
}

// QueueCounts flattens per-lane counts into "lane/status" keys.
func QueueCounts(counts []queue.Count) map[string]int {
	out := make(map[string]int, len(counts))
	for _, count := range counts {
		out[string(count.Lane)+"/"+string(count.Status)] += count.Jobs
	}
	return out
}

// StageHealthSlice converts a stage health map into a deterministic slice.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		out = append(out, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FromDependencies converts binary check results.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, DependencyStatus{
			Name:        status.Name,
			Command:     status.Command,
			Description: status.Description,
			Optional:    status.Optional,
			Available:   status.Available,
			Detail:      status.Detail,
		})
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatTime(*t)
}

// ParseTime parses an API timestamp, returning the zero time on failure.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}
