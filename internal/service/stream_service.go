package service

import (
	"fmt"
	"time"

	"github.com/chunkstream/api/internal/model"
	"github.com/chunkstream/api/internal/signing"
	"github.com/chunkstream/api/internal/storage"
	"github.com/chunkstream/api/internal/stream"
)

// StreamService builds manifests and metadata views on top of the resolver
// and the signing authority.
type StreamService struct {
	resolver *stream.Resolver
	signer   *signing.Signer
	meta     *storage.MetadataStore
}

func NewStreamService(resolver *stream.Resolver, signer *signing.Signer, meta *storage.MetadataStore) *StreamService {
	return &StreamService{
		resolver: resolver,
		signer:   signer,
		meta:     meta,
	}
}

// Metadata returns the public descriptor for an asset.
func (s *StreamService) Metadata(videoID string) (*model.VideoResponse, error) {
	meta, err := s.meta.Read(videoID)
	if err != nil {
		return nil, err
	}
	return &model.VideoResponse{VideoID: videoID, VideoMetadata: *meta}, nil
}

// Manifest enumerates every chunk of one asset/tier, optionally attaching a
// signed grant per chunk. Chunks not yet encoded are listed without a size
// so clients can see the asset's full extent while an encode is in flight.
func (s *StreamService) Manifest(videoID, quality string, sign bool, ttl time.Duration) (*model.Manifest, error) {
	meta, err := s.meta.Read(videoID)
	if err != nil {
		return nil, err
	}

	resolved, err := s.resolver.ResolveQuality(meta, quality)
	if err != nil {
		return nil, err
	}

	var grants []signing.Grant
	if sign {
		grants = s.signer.IssueBatch(videoID, resolved, 0, meta.TotalChunks, ttl)
	}

	chunks := make([]model.ChunkSummary, 0, meta.TotalChunks)
	for i := 0; i < meta.TotalChunks; i++ {
		summary := model.ChunkSummary{
			Index:     i,
			Timestamp: stream.IndexToTimestamp(i, meta.ChunkDuration),
			URL:       ChunkURL(videoID, resolved, i),
		}
		if desc, err := s.resolver.ResolveChunk(videoID, resolved, i); err == nil {
			summary.Size = desc.Size
		}
		if grants != nil {
			summary.ExpiresAt = grants[i].ExpiresAt
			summary.Signature = grants[i].Signature
		}
		chunks = append(chunks, summary)
	}

	return &model.Manifest{
		VideoID:       videoID,
		Quality:       resolved,
		ChunkDuration: meta.ChunkDuration,
		TotalChunks:   meta.TotalChunks,
		Chunks:        chunks,
	}, nil
}

// ChunkURL is the delivery path for one chunk.
func ChunkURL(videoID, quality string, index int) string {
	return fmt.Sprintf("/api/videos/%s/chunks/%s/%d", videoID, quality, index)
}

// ManifestURL is the manifest path for one asset/tier.
func ManifestURL(videoID, quality string) string {
	return fmt.Sprintf("/api/videos/%s/manifest/%s", videoID, quality)
}
