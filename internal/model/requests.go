package model

// IngestURLRequest starts an ingestion job from a remote source URL.
type IngestURLRequest struct {
	URL         string   `json:"url" validate:"required,url"`
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=2000"`
	Qualities   []string `json:"qualities" validate:"omitempty,dive,oneof=1080p 720p 480p 360p"`
}

// IngestUploadOptions carries the multipart form fields of a direct upload.
type IngestUploadOptions struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=2000"`
	Qualities   []string `json:"qualities" validate:"omitempty,dive,oneof=1080p 720p 480p 360p"`
}

// IngestResponse acknowledges an accepted ingestion request.
type IngestResponse struct {
	JobID   string    `json:"jobId"`
	VideoID string    `json:"videoId"`
	Status  JobStatus `json:"status"`
}

// TokenRequest exchanges the configured API key for a management bearer token.
type TokenRequest struct {
	APIKey string `json:"apiKey" validate:"required"`
}

// TokenResponse carries an issued bearer token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
}
