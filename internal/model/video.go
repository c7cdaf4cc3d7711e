package model

import "time"

// VideoMetadata is the per-asset descriptor persisted as metadata.json.
// TotalChunks, Qualities and ChunkDuration are fixed at transcode time and
// change only through an explicit merge update.
type VideoMetadata struct {
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Duration      float64           `json:"duration"`
	ChunkDuration int               `json:"chunkDuration"`
	TotalChunks   int               `json:"totalChunks"`
	Qualities     []string          `json:"qualities"`
	Resolutions   map[string]string `json:"resolutions"`
	Bitrates      map[string]string `json:"bitrates"`
	Thumbnail     string            `json:"thumbnail,omitempty"`
	SourceURL     string            `json:"sourceUrl,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     *time.Time        `json:"updatedAt,omitempty"`
}

// HasQuality reports whether the asset was produced in the given tier.
func (m *VideoMetadata) HasQuality(quality string) bool {
	for _, q := range m.Qualities {
		if q == quality {
			return true
		}
	}
	return false
}

// VideoResponse is the public metadata view returned by the API.
type VideoResponse struct {
	VideoID string `json:"videoId"`
	VideoMetadata
}

// ChunkSummary describes one resolvable chunk in a prefetch or manifest listing.
type ChunkSummary struct {
	Index     int     `json:"index"`
	Size      int64   `json:"size"`
	Timestamp float64 `json:"timestamp"`
	URL       string  `json:"url,omitempty"`
	ExpiresAt int64   `json:"expiresAt,omitempty"`
	Signature string  `json:"signature,omitempty"`
}

// Manifest enumerates the chunks of one asset/tier, built on demand from metadata.
type Manifest struct {
	VideoID       string         `json:"videoId"`
	Quality       string         `json:"quality"`
	ChunkDuration int            `json:"chunkDuration"`
	TotalChunks   int            `json:"totalChunks"`
	Chunks        []ChunkSummary `json:"chunks"`
}
