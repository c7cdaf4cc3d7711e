package model

import (
	"encoding/json"
	"time"
)

// Job status
type JobStatus string

const (
	JobStatusInitializing JobStatus = "initializing"
	JobStatusDownloading  JobStatus = "downloading"
	JobStatusProcessing   JobStatus = "processing"
	JobStatusCompleted    JobStatus = "completed"
	JobStatusFailed       JobStatus = "failed"
)

// statusRank orders the forward-only job lifecycle. Terminal states share the
// highest rank so neither can replace the other.
var statusRank = map[JobStatus]int{
	JobStatusInitializing: 0,
	JobStatusDownloading:  1,
	JobStatusProcessing:   2,
	JobStatusCompleted:    3,
	JobStatusFailed:       3,
}

// Terminal reports whether the status is absorbing.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal forward
// transition. Terminal states accept nothing; equal states are allowed so
// repeated progress updates within a stage pass through.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s.Terminal() {
		return false
	}
	return statusRank[next] >= statusRank[s]
}

// Job tracks one ingestion run independently of the asset it may produce.
type Job struct {
	ID          string     `json:"jobId"`
	VideoID     string     `json:"videoId"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	Stage       string     `json:"stage,omitempty"`
	Error       string     `json:"error,omitempty"`
	Result      *JobResult `json:"result,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	FailedAt    *time.Time `json:"failedAt,omitempty"`
}

// JobResult is attached to a job once it completes.
type JobResult struct {
	VideoID     string        `json:"videoId"`
	StreamURL   string        `json:"streamUrl"`
	ManifestURL string        `json:"manifestUrl"`
	Metadata    VideoMetadata `json:"metadata"`
}

// JobPatch is a partial update merged into a job record by its driver.
type JobPatch struct {
	Status   *JobStatus
	Progress *int
	Stage    *string
	Error    *string
	Result   *JobResult
}

// IngestPayload is the asynq task payload for one ingestion job.
type IngestPayload struct {
	VideoID     string   `json:"videoId"`
	InputPath   string   `json:"inputPath,omitempty"`
	SourceURL   string   `json:"sourceUrl,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Qualities   []string `json:"qualities"`
}

// IngestTaskEnvelope wraps the payload with its job ID on the queue.
type IngestTaskEnvelope struct {
	JobID   string          `json:"jobId"`
	Payload json.RawMessage `json:"payload"`
}

// ProgressEvent is published by the transcode pipeline and merged into the
// job record by the job driver.
type ProgressEvent struct {
	Stage    string `json:"stage"`
	Progress int    `json:"progress"`
}
