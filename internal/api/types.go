package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ConvertRequest asks the daemon to convert input into output.
type ConvertRequest struct {
	Input       string `json:"input"`
	Output      string `json:"output"`
	CallbackURL string `json:"callbackUrl,omitempty"`
	// Tier optionally overrides the configured output caps ("small" or "large").
	Tier string `json:"tier,omitempty"`
}

// InputRequest names the single path a subtitle job works on.
type InputRequest struct {
	Input string `json:"input"`
}

// CallbackRequest is the webhook body a conversion reports back with.
type CallbackRequest struct {
	Status string `json:"status"`
}

// Job describes a queued job in a transport-friendly format.
type Job struct {
	ID            int64  `json:"id"`
	CorrelationID string `json:"correlationId"`
	Lane          string `json:"lane"`
	Kind          string `json:"kind"`
	Input         string `json:"input"`
	Output        string `json:"output,omitempty"`
	Tier          string `json:"tier,omitempty"`
	Status        string `json:"status"`
	TimeoutSec    int64  `json:"timeoutSeconds,omitempty"`
	EnqueuedAt    string `json:"enqueuedAt"`
	StartedAt     string `json:"startedAt,omitempty"`
	FinishedAt    string `json:"finishedAt,omitempty"`
	HeartbeatAt   string `json:"heartbeatAt,omitempty"`
	WorkerID      string `json:"workerId,omitempty"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
	CallbackURL   string `json:"callbackUrl,omitempty"`
	CallbackState string `json:"callbackState"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// SubmitResponse lists the jobs a submission enqueued.
type SubmitResponse struct {
	Job     Job   `json:"job"`
	Related []Job `json:"related,omitempty"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// PruneResponse reports how many terminal jobs were removed.
type PruneResponse struct {
	Removed int64 `json:"removed"`
}

// Asset describes a library asset.
type Asset struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Year            int    `json:"year,omitempty"`
	Season          *int   `json:"season,omitempty"`
	Episode         *int   `json:"episode,omitempty"`
	CatalogID       string `json:"catalogId,omitempty"`
	MediaType       string `json:"mediaType"`
	TriagePath      string `json:"triagePath"`
	BaseName        string `json:"baseName"`
	Extension       string `json:"extension"`
	DurationSeconds *int   `json:"durationSeconds,omitempty"`
	Status          string `json:"conversionStatus"`
	EffectiveStatus string `json:"effectiveStatus"`
	OriginalPath    string `json:"originalPath"`
	ConvertedPath   string `json:"convertedPath"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt"`
}

// AssetResponse wraps a single asset.
type AssetResponse struct {
	Asset Asset `json:"asset"`
}

// AssetListResponse wraps a collection of assets.
type AssetListResponse struct {
	Assets []Asset `json:"assets"`
}

// AdmitRequest creates an asset from a file in the triage directory.
type AdmitRequest struct {
	TriagePath string `json:"triagePath"`
	Title      string `json:"title"`
	Year       int    `json:"year,omitempty"`
	Season     *int   `json:"season,omitempty"`
	Episode    *int   `json:"episode,omitempty"`
	CatalogID  string `json:"catalogId,omitempty"`
}

// AssetConvertRequest optionally selects a tier for an asset submission.
type AssetConvertRequest struct {
	Tier string `json:"tier,omitempty"`
}

// UntriagedResponse lists triage files not yet admitted.
type UntriagedResponse struct {
	Videos []string `json:"videos"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	QueueStats  map[string]int `json:"queueStats"`
	LaneWorkers map[string]int `json:"laneWorkers,omitempty"`
	LastError   string         `json:"lastError,omitempty"`
	LastJob     *Job           `json:"lastJob,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for job handlers.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// HealthResponse aggregates daemon runtime information.
type HealthResponse struct {
	Status       string             `json:"status"`
	PID          int                `json:"pid"`
	QueueDBPath  string             `json:"queueDbPath"`
	LibraryDB    string             `json:"libraryDbPath"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
