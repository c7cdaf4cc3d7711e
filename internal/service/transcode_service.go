package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/chunkstream/api/internal/media"
	"github.com/chunkstream/api/internal/model"
	"github.com/chunkstream/api/internal/storage"
)

// TranscodeService drives the external prober and encoder across the
// selected quality tiers for one input file, then publishes the asset
// metadata. Tiers run strictly sequentially within a job to bound resource
// usage and keep the progress metric deterministic.
type TranscodeService struct {
	prober        *media.Prober
	encoder       *media.Encoder
	thumbnailer   *media.Thumbnailer
	layout        *storage.Layout
	meta          *storage.MetadataStore
	chunkDuration int
}

func NewTranscodeService(prober *media.Prober, encoder *media.Encoder, thumbnailer *media.Thumbnailer, layout *storage.Layout, meta *storage.MetadataStore, chunkDuration int) *TranscodeService {
	return &TranscodeService{
		prober:        prober,
		encoder:       encoder,
		thumbnailer:   thumbnailer,
		layout:        layout,
		meta:          meta,
		chunkDuration: chunkDuration,
	}
}

// TranscodeOptions selects tiers and carries the job's progress channel.
// The caller owns Progress: it must keep a consumer draining until Transcode
// returns, and closes the channel itself afterwards.
type TranscodeOptions struct {
	Title       string
	Description string
	Qualities   []string
	SourceURL   string
	Progress    chan<- model.ProgressEvent
}

// Transcode runs the full pipeline for one video. Metadata is written only
// after every tier succeeds; a failing tier fails the whole run and no asset
// is published (already-written chunk files stay on disk). A thumbnail
// failure is logged and swallowed.
func (s *TranscodeService) Transcode(ctx context.Context, inputPath, videoID string, opts TranscodeOptions) (*model.VideoMetadata, error) {
	info, err := s.prober.Probe(ctx, inputPath)
	if err != nil {
		return nil, err
	}

	totalChunks := int(math.Ceil(info.Duration / float64(s.chunkDuration)))
	tiers := media.SelectTiers(opts.Qualities, info.Height)

	// Progress is monotone across the whole multi-tier run.
	lastPct := 0
	emit := func(stage string, pct int) {
		if pct < lastPct {
			pct = lastPct
		}
		lastPct = pct
		if opts.Progress != nil {
			opts.Progress <- model.ProgressEvent{Stage: stage, Progress: pct}
		}
	}

	for i, tier := range tiers {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		outDir, err := s.layout.EnsureChunkDir(videoID, tier.Name)
		if err != nil {
			return nil, err
		}

		stage := fmt.Sprintf("encoding %s (%d/%d)", tier.Name, i+1, len(tiers))
		completed := i
		err = s.encoder.EncodeTier(ctx, inputPath, outDir, tier, s.chunkDuration, info.Duration, func(tierPct float64) {
			overall := (float64(completed) + tierPct/100) / float64(len(tiers)) * 100
			emit(stage, int(overall))
		})
		if err != nil {
			return nil, err
		}
		emit(stage, (completed+1)*100/len(tiers))
	}

	thumbnail := ""
	if err := s.thumbnailer.Generate(ctx, inputPath, s.layout.ThumbnailPath(videoID), info.Duration*0.1); err != nil {
		log.Printf("transcode %s: thumbnail failed: %v", videoID, err)
	} else {
		thumbnail = "thumbnail.jpg"
	}

	qualities := make([]string, len(tiers))
	resolutions := make(map[string]string, len(tiers))
	bitrates := make(map[string]string, len(tiers))
	for i, tier := range tiers {
		qualities[i] = tier.Name
		resolutions[tier.Name] = tier.Resolution()
		bitrates[tier.Name] = tier.VideoBitrate
	}

	meta := &model.VideoMetadata{
		Title:         opts.Title,
		Description:   opts.Description,
		Duration:      info.Duration,
		ChunkDuration: s.chunkDuration,
		TotalChunks:   totalChunks,
		Qualities:     qualities,
		Resolutions:   resolutions,
		Bitrates:      bitrates,
		Thumbnail:     thumbnail,
		SourceURL:     opts.SourceURL,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.meta.Write(videoID, meta); err != nil {
		return nil, fmt.Errorf("publish metadata: %w", err)
	}
	return meta, nil
}

// UpdateMetadata merges partial fields into an existing asset record.
func (s *TranscodeService) UpdateMetadata(videoID string, fields map[string]interface{}) (*model.VideoMetadata, error) {
	return s.meta.Update(videoID, fields)
}
