package domain

import "time"

type JobState string

const (
	StateDownloading JobState = "downloading"
	StateProcessing  JobState = "processing" // Post-processing (muxing/remux)
	StateCompleted   JobState = "completed"
	StateFailed      JobState = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// JobResult is only populated once a job reaches StateCompleted.
type JobResult struct {
	ArtifactPath string `json:"-"`
	DownloadURL  string `json:"download_url"`
}

// Job represents one download request, from submission to reclamation.
// SourceURL and StartedAt are immutable after creation; Progress is only
// meaningful while State == StateDownloading.
type Job struct {
	Handle    string   `json:"download_id"`
	State     JobState `json:"status"`
	Progress  float64  `json:"progress"`
	SourceURL string   `json:"url"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`

	Result *JobResult `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
}
