package model

// WebSocket message types
type WSMessageType string

const (
	WSMessageTypeProgress WSMessageType = "progress"
	WSMessageTypeComplete WSMessageType = "complete"
	WSMessageTypeError    WSMessageType = "error"
)

// WSProgressMessage is pushed to subscribers while a job is running.
type WSProgressMessage struct {
	Type     WSMessageType `json:"type"`
	JobID    string        `json:"jobId"`
	Status   JobStatus     `json:"status"`
	Progress int           `json:"progress"`
	Stage    string        `json:"stage,omitempty"`
}

// WSCompleteMessage is pushed once when a job completes.
type WSCompleteMessage struct {
	Type   WSMessageType `json:"type"`
	JobID  string        `json:"jobId"`
	Result *JobResult    `json:"result"`
}

// WSErrorMessage is pushed once when a job fails.
type WSErrorMessage struct {
	Type    WSMessageType `json:"type"`
	JobID   string        `json:"jobId"`
	Code    string        `json:"code"`
	Message string        `json:"message"`
}
