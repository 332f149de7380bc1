package queue

import "time"

// Lane separates long conversions from quick subtitle work so each gets its
// own workers and timeout.
type Lane string

const (
	LaneConversion Lane = "conversion"
	LaneSubtitles  Lane = "subtitles"
)

// Lanes lists every lane in display order.
func Lanes() []Lane {
	return []Lane{LaneConversion, LaneSubtitles}
}

// Kind names the work a job performs.
type Kind string

const (
	KindConvert          Kind = "convert"
	KindExtractSubtitles Kind = "extract-subtitles"
	KindConvertSubtitles Kind = "convert-subtitles"
)

// LaneFor returns the lane a kind runs in.
func LaneFor(kind Kind) Lane {
	if kind == KindConvert {
		return LaneConversion
	}
	return LaneSubtitles
}

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusQueued, StatusRunning, StatusSucceeded, StatusFailed}
}

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// CallbackState tracks webhook delivery for a job.
type CallbackState string

const (
	CallbackNone    CallbackState = "none"
	CallbackPending CallbackState = "pending"
	CallbackSent    CallbackState = "sent"
	CallbackFailed  CallbackState = "failed"
)

// Job is one unit of queued work.
type Job struct {
	ID            int64
	CorrelationID string
	Lane          Lane
	Kind          Kind
	Input         string
	Output        string
	CallbackURL   string
	// Tier selects the output caps for conversions; empty means the configured tier.
	Tier          string
	Status        Status
	Timeout       time.Duration
	EnqueuedAt    time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
	HeartbeatAt   *time.Time
	WorkerID      string
	Error         string
	CallbackState CallbackState
}

// NewJob describes a job to enqueue.
type NewJob struct {
	CorrelationID string
	Kind          Kind
	Input         string
	Output        string
	CallbackURL   string
	Tier          string
	Timeout       time.Duration
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Lane     Lane
	Statuses []Status
	Limit    int
}

// Count is the number of jobs in one lane and status.
type Count struct {
	Lane   Lane
	Status Status
	Jobs   int
}
