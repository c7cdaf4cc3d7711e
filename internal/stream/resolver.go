package stream

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/chunkstream/api/internal/model"
	"github.com/chunkstream/api/internal/storage"
)

// ChunkDescriptor is the result of resolving one chunk: its identity after
// quality substitution, its size, and a range-capable stream opener.
type ChunkDescriptor struct {
	VideoID string
	Quality string
	Index   int
	Size    int64
	Path    string
}

// Open returns a seekable reader over the chunk file.
func (d *ChunkDescriptor) Open() (io.ReadSeekCloser, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, fmt.Errorf("open chunk: %w", err)
	}
	return f, nil
}

// Resolver validates and resolves chunk addresses against stored metadata
// and the on-disk layout.
type Resolver struct {
	layout         *storage.Layout
	meta           *storage.MetadataStore
	defaultQuality string
}

func NewResolver(layout *storage.Layout, meta *storage.MetadataStore, defaultQuality string) *Resolver {
	return &Resolver{
		layout:         layout,
		meta:           meta,
		defaultQuality: defaultQuality,
	}
}

// ResolveQuality applies the substitution policy: the requested tier if the
// asset has it, otherwise the configured default tier, otherwise failure.
func (r *Resolver) ResolveQuality(meta *model.VideoMetadata, requested string) (string, error) {
	if meta.HasQuality(requested) {
		return requested, nil
	}
	if meta.HasQuality(r.defaultQuality) {
		return r.defaultQuality, nil
	}
	return "", &QualityUnavailableError{Requested: requested, Available: meta.Qualities}
}

// ResolveChunk resolves (videoId, quality, index) to a concrete chunk file.
// A missing file for an otherwise valid address returns ErrChunkNotFound,
// which callers must treat as "not encoded yet", not as corruption.
func (r *Resolver) ResolveChunk(videoID, quality string, index int) (*ChunkDescriptor, error) {
	meta, err := r.meta.Read(videoID)
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= meta.TotalChunks {
		return nil, &OutOfRangeError{RequestedIndex: index, TotalChunks: meta.TotalChunks}
	}

	resolved, err := r.ResolveQuality(meta, quality)
	if err != nil {
		return nil, err
	}

	path := r.layout.ChunkPath(videoID, resolved, index)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrChunkNotFound
		}
		return nil, fmt.Errorf("stat chunk: %w", err)
	}

	return &ChunkDescriptor{
		VideoID: videoID,
		Quality: resolved,
		Index:   index,
		Size:    info.Size(),
		Path:    path,
	}, nil
}

// ResolveByTimestamp maps a playback timestamp to a chunk using the asset's
// own chunk duration, then resolves it.
func (r *Resolver) ResolveByTimestamp(videoID, quality string, timestamp float64) (*ChunkDescriptor, error) {
	meta, err := r.meta.Read(videoID)
	if err != nil {
		return nil, err
	}

	index := TimestampToIndex(timestamp, meta.ChunkDuration)
	return r.ResolveChunk(videoID, quality, index)
}

// GetChunkRange lists up to count consecutive chunks starting at startIndex.
// Indices that fail to resolve are logged and skipped so clients can
// prefetch ahead of an in-progress encode.
func (r *Resolver) GetChunkRange(videoID, quality string, startIndex, count int) ([]model.ChunkSummary, error) {
	meta, err := r.meta.Read(videoID)
	if err != nil {
		return nil, err
	}

	summaries := make([]model.ChunkSummary, 0, count)
	for i := startIndex; i < startIndex+count; i++ {
		desc, err := r.ResolveChunk(videoID, quality, i)
		if err != nil {
			log.Printf("prefetch: skipping chunk %s/%s/%d: %v", videoID, quality, i, err)
			continue
		}
		summaries = append(summaries, model.ChunkSummary{
			Index:     desc.Index,
			Size:      desc.Size,
			Timestamp: IndexToTimestamp(desc.Index, meta.ChunkDuration),
		})
	}
	return summaries, nil
}
