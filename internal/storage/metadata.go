package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chunkstream/api/internal/model"
)

// ErrVideoNotFound is returned when no metadata exists for a video ID.
var ErrVideoNotFound = errors.New("video not found")

// MetadataStore reads and writes per-asset metadata.json descriptors.
// Concurrent merge updates to the same asset are last-write-wins; acceptable
// while at most one ingestion runs per videoId.
type MetadataStore struct {
	layout *Layout
	now    func() time.Time
}

func NewMetadataStore(layout *Layout) *MetadataStore {
	return &MetadataStore{layout: layout, now: time.Now}
}

// Read loads the descriptor for a video.
func (s *MetadataStore) Read(videoID string) (*model.VideoMetadata, error) {
	data, err := os.ReadFile(s.layout.MetadataPath(videoID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrVideoNotFound
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var meta model.VideoMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return &meta, nil
}

// Exists reports whether a descriptor is present for the video.
func (s *MetadataStore) Exists(videoID string) bool {
	_, err := os.Stat(s.layout.MetadataPath(videoID))
	return err == nil
}

// Write persists the full descriptor atomically (temp file + rename), so a
// concurrent reader never observes a half-written record.
func (s *MetadataStore) Write(videoID string, meta *model.VideoMetadata) error {
	if _, err := s.layout.EnsureVideoDir(videoID); err != nil {
		return err
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	path := s.layout.MetadataPath(videoID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish metadata: %w", err)
	}
	return nil
}

// Update performs a read-merge-write of the given fields and stamps
// updatedAt. Unknown fields are merged verbatim at the JSON level so callers
// can attach provenance (e.g. sourceUrl) without widening the struct.
func (s *MetadataStore) Update(videoID string, fields map[string]interface{}) (*model.VideoMetadata, error) {
	data, err := os.ReadFile(s.layout.MetadataPath(videoID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrVideoNotFound
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var record map[string]interface{}
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}

	for k, v := range fields {
		record[k] = v
	}
	record["updatedAt"] = s.now().UTC().Format(time.RFC3339Nano)

	merged, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	path := s.layout.MetadataPath(videoID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, merged, 0o644); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("publish metadata: %w", err)
	}

	var meta model.VideoMetadata
	if err := json.Unmarshal(merged, &meta); err != nil {
		return nil, fmt.Errorf("parse merged metadata: %w", err)
	}
	return &meta, nil
}
