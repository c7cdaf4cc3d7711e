package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/chunkstream/api/internal/model"
	"github.com/chunkstream/api/internal/registry"
)

// TaskTypeIngest is the asynq task type for ingestion jobs.
const TaskTypeIngest = "ingest:video"

// IngestService creates ingestion jobs and enqueues their pipeline tasks.
// The caller gets a jobId back immediately; all pipeline failures surface
// only on the job record.
type IngestService struct {
	registry    *registry.Registry
	canceller   *registry.Canceller
	asynqClient *asynq.Client
}

func NewIngestService(reg *registry.Registry, canceller *registry.Canceller, asynqClient *asynq.Client) *IngestService {
	return &IngestService{
		registry:    reg,
		canceller:   canceller,
		asynqClient: asynqClient,
	}
}

// StartInput describes one ingestion request; exactly one of InputPath
// (direct upload, already local) or SourceURL (remote fetch) is set.
type StartInput struct {
	InputPath   string
	SourceURL   string
	Title       string
	Description string
	Qualities   []string
}

// Start registers a job and enqueues the pipeline task.
func (s *IngestService) Start(ctx context.Context, in StartInput) (*model.IngestResponse, error) {
	jobID := uuid.New().String()
	videoID := uuid.New().String()

	job, err := s.registry.Create(ctx, jobID, videoID)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	payload := model.IngestPayload{
		VideoID:     videoID,
		InputPath:   in.InputPath,
		SourceURL:   in.SourceURL,
		Title:       in.Title,
		Description: in.Description,
		Qualities:   in.Qualities,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	envelope, err := json.Marshal(model.IngestTaskEnvelope{JobID: jobID, Payload: payloadBytes})
	if err != nil {
		return nil, fmt.Errorf("marshal task: %w", err)
	}

	task := asynq.NewTask(TaskTypeIngest, envelope)
	// A failed transcode must stay failed; the terminal-once contract rules
	// out queue-level retries.
	if _, err := s.asynqClient.Enqueue(task,
		asynq.Queue("ingest"),
		asynq.MaxRetry(0),
		asynq.Timeout(24*time.Hour),
		asynq.Retention(24*time.Hour),
	); err != nil {
		return nil, fmt.Errorf("enqueue task: %w", err)
	}

	return &model.IngestResponse{JobID: jobID, VideoID: videoID, Status: job.Status}, nil
}

// GetJob returns one job record.
func (s *IngestService) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	return s.registry.Get(ctx, jobID)
}

// ListJobs returns the most recent limit job records.
func (s *IngestService) ListJobs(ctx context.Context, limit int) ([]*model.Job, error) {
	return s.registry.List(ctx, limit)
}

// DeleteJob removes the tracking record and cancels the job's in-flight work
// if it has not reached a terminal state.
func (s *IngestService) DeleteJob(ctx context.Context, jobID string) error {
	job, err := s.registry.Delete(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.Status.Terminal() {
		s.canceller.Cancel(jobID)
	}
	return nil
}
