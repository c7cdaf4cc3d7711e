package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hibiken/asynq"

	"github.com/chunkstream/api/internal/download"
	"github.com/chunkstream/api/internal/model"
	"github.com/chunkstream/api/internal/registry"
	"github.com/chunkstream/api/internal/service"
	"github.com/chunkstream/api/internal/websocket"
)

// Job progress is split between the download and transcode phases so the
// overall number stays monotone across the stage boundary.
const downloadShare = 25

// IngestWorker drives one ingestion job end to end: optional remote fetch,
// transcode, metadata publication. It is the only writer for its job record.
type IngestWorker struct {
	registry   *registry.Registry
	canceller  *registry.Canceller
	transcoder *service.TranscodeService
	downloader *download.Downloader
	hub        *websocket.Hub
	tempDir    string
}

func NewIngestWorker(reg *registry.Registry, canceller *registry.Canceller, transcoder *service.TranscodeService, downloader *download.Downloader, hub *websocket.Hub, tempDir string) *IngestWorker {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &IngestWorker{
		registry:   reg,
		canceller:  canceller,
		transcoder: transcoder,
		downloader: downloader,
		hub:        hub,
		tempDir:    tempDir,
	}
}

// ProcessTask handles one queued ingestion job.
func (w *IngestWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var envelope model.IngestTaskEnvelope
	if err := json.Unmarshal(t.Payload(), &envelope); err != nil {
		return fmt.Errorf("unmarshal task envelope: %w", err)
	}

	var payload model.IngestPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		w.failJob(ctx, envelope.JobID, "invalid job payload")
		return fmt.Errorf("unmarshal ingest payload: %w", err)
	}

	jobID := envelope.JobID
	log.Printf("ingest %s: starting (video %s)", jobID, payload.VideoID)

	jobCtx := w.canceller.Register(ctx, jobID)
	defer w.canceller.Release(jobID)

	inputPath := payload.InputPath
	// The temporary input is removed on every exit path, success or failure.
	defer func() {
		if inputPath != "" {
			if err := os.Remove(inputPath); err != nil && !os.IsNotExist(err) {
				log.Printf("ingest %s: remove temp input: %v", jobID, err)
			}
		}
	}()

	if payload.SourceURL != "" {
		inputPath = filepath.Join(w.tempDir, "ingest-"+jobID)
		if err := w.fetchSource(jobCtx, jobID, payload.SourceURL, inputPath); err != nil {
			inputPath = "" // nothing left to clean up, Fetch removed the partial file
			w.failJob(ctx, jobID, err.Error())
			return err
		}
	}

	w.setStage(ctx, jobID, model.JobStatusProcessing, downloadPhaseEnd(payload.SourceURL), "probing source")

	result, err := w.runTranscode(jobCtx, jobID, inputPath, payload)
	if err != nil {
		w.failJob(ctx, jobID, err.Error())
		return err
	}

	completed := model.JobStatusCompleted
	if _, err := w.registry.Update(ctx, jobID, model.JobPatch{Status: &completed, Result: result}); err != nil {
		log.Printf("ingest %s: record completion: %v", jobID, err)
	}
	w.hub.BroadcastComplete(jobID, result)

	log.Printf("ingest %s: completed", jobID)
	return nil
}

func (w *IngestWorker) fetchSource(ctx context.Context, jobID, sourceURL, destPath string) error {
	w.setStage(ctx, jobID, model.JobStatusDownloading, 0, "downloading source")

	return w.downloader.Fetch(ctx, sourceURL, destPath, func(pct int) {
		scaled := pct * downloadShare / 100
		w.updateProgress(ctx, jobID, model.JobStatusDownloading, scaled, "downloading source")
	})
}

func (w *IngestWorker) runTranscode(ctx context.Context, jobID, inputPath string, payload model.IngestPayload) (*model.JobResult, error) {
	base := downloadPhaseEnd(payload.SourceURL)

	// The pipeline publishes events; this driver is the only consumer and
	// the only writer for the job record.
	events := make(chan model.ProgressEvent, 16)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range events {
			scaled := base + ev.Progress*(100-base)/100
			if scaled > 99 {
				scaled = 99
			}
			w.updateProgress(ctx, jobID, model.JobStatusProcessing, scaled, ev.Stage)
		}
	}()

	meta, err := w.transcoder.Transcode(ctx, inputPath, payload.VideoID, service.TranscodeOptions{
		Title:       payload.Title,
		Description: payload.Description,
		Qualities:   payload.Qualities,
		SourceURL:   payload.SourceURL,
		Progress:    events,
	})
	close(events)
	<-drained
	if err != nil {
		return nil, err
	}

	quality := meta.Qualities[0]
	return &model.JobResult{
		VideoID:     payload.VideoID,
		StreamURL:   service.ChunkURL(payload.VideoID, quality, 0),
		ManifestURL: service.ManifestURL(payload.VideoID, quality),
		Metadata:    *meta,
	}, nil
}

func downloadPhaseEnd(sourceURL string) int {
	if sourceURL == "" {
		return 0
	}
	return downloadShare
}

func (w *IngestWorker) setStage(ctx context.Context, jobID string, status model.JobStatus, progress int, stage string) {
	if _, err := w.registry.Update(ctx, jobID, model.JobPatch{Status: &status, Progress: &progress, Stage: &stage}); err != nil {
		log.Printf("ingest %s: update stage: %v", jobID, err)
	}
	w.hub.BroadcastProgress(jobID, status, progress, stage)
}

func (w *IngestWorker) updateProgress(ctx context.Context, jobID string, status model.JobStatus, progress int, stage string) {
	if _, err := w.registry.Update(ctx, jobID, model.JobPatch{Status: &status, Progress: &progress, Stage: &stage}); err != nil {
		log.Printf("ingest %s: update progress: %v", jobID, err)
		return
	}
	w.hub.BroadcastProgress(jobID, status, progress, stage)
}

func (w *IngestWorker) failJob(ctx context.Context, jobID, errMsg string) {
	failed := model.JobStatusFailed
	if _, err := w.registry.Update(ctx, jobID, model.JobPatch{Status: &failed, Error: &errMsg}); err != nil {
		log.Printf("ingest %s: record failure: %v", jobID, err)
	}
	w.hub.BroadcastError(jobID, "INGEST_FAILED", errMsg)
}
