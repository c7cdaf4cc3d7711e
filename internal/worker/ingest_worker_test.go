package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/chunkstream/api/internal/download"
	"github.com/chunkstream/api/internal/media"
	"github.com/chunkstream/api/internal/model"
	"github.com/chunkstream/api/internal/registry"
	"github.com/chunkstream/api/internal/service"
	"github.com/chunkstream/api/internal/storage"
	ws "github.com/chunkstream/api/internal/websocket"
)

type stubRunner struct {
	probeJSON string
	segments  int
	failTier  string
}

func (f *stubRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if strings.Contains(name, "ffprobe") {
		return []byte(f.probeJSON), nil
	}
	outPath := args[len(args)-1]
	return nil, os.WriteFile(outPath, []byte("jpeg"), 0o644)
}

func (f *stubRunner) RunLines(ctx context.Context, onLine func(string), name string, args ...string) error {
	var pattern string
	for i, a := range args {
		if a == "-hls_segment_filename" && i+1 < len(args) {
			pattern = args[i+1]
		}
		if f.failTier != "" && strings.Contains(a, f.failTier) {
			return errors.New("encoder exit status 1")
		}
	}
	for i := 0; i < f.segments; i++ {
		path := strings.Replace(pattern, "%06d", fmt.Sprintf("%06d", i), 1)
		if err := os.WriteFile(path, []byte("ts-segment"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

const stubProbeJSON = `{
	"streams": [{"codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720}],
	"format": {"duration": "12.000000"}
}`

type workerFixture struct {
	worker   *IngestWorker
	registry *registry.Registry
	layout   *storage.Layout
}

func newWorkerFixture(t *testing.T, runner media.Runner) *workerFixture {
	t.Helper()
	layout := storage.NewLayout(t.TempDir())
	meta := storage.NewMetadataStore(layout)
	reg := registry.New(registry.NewMemoryStore())
	canceller := registry.NewCanceller()

	transcoder := service.NewTranscodeService(
		media.NewProber("ffprobe", runner),
		media.NewEncoder("ffmpeg", runner),
		media.NewThumbnailer("ffmpeg", runner),
		layout, meta, 5,
	)
	downloader := download.NewDownloader(5*time.Second, 0)

	w := NewIngestWorker(reg, canceller, transcoder, downloader, ws.NewHub(), t.TempDir())
	return &workerFixture{worker: w, registry: reg, layout: layout}
}

func enqueue(t *testing.T, fx *workerFixture, jobID string, payload model.IngestPayload) *asynq.Task {
	t.Helper()
	if _, err := fx.registry.Create(context.Background(), jobID, payload.VideoID); err != nil {
		t.Fatalf("create job: %v", err)
	}
	payloadBytes, _ := json.Marshal(payload)
	envelope, _ := json.Marshal(model.IngestTaskEnvelope{JobID: jobID, Payload: payloadBytes})
	return asynq.NewTask(service.TaskTypeIngest, envelope)
}

func tempInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.mp4")
	if err := os.WriteFile(path, []byte("source"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProcessDirectUploadCompletes(t *testing.T) {
	fx := newWorkerFixture(t, &stubRunner{probeJSON: stubProbeJSON, segments: 3})
	input := tempInput(t)

	task := enqueue(t, fx, "job1", model.IngestPayload{
		VideoID:   "vid1",
		InputPath: input,
		Title:     "clip",
		Qualities: []string{"720p"},
	})

	if err := fx.worker.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}

	job, err := fx.registry.Get(context.Background(), "job1")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != model.JobStatusCompleted {
		t.Errorf("status = %s, want completed (error: %s)", job.Status, job.Error)
	}
	if job.Progress != 100 {
		t.Errorf("progress = %d, want 100", job.Progress)
	}
	if job.Result == nil || job.Result.VideoID != "vid1" {
		t.Errorf("result = %+v", job.Result)
	}
	if job.Result != nil && job.Result.Metadata.TotalChunks != 3 {
		t.Errorf("totalChunks = %d, want 3", job.Result.Metadata.TotalChunks)
	}

	// The temporary input is removed on success.
	if _, err := os.Stat(input); !os.IsNotExist(err) {
		t.Error("temp input not cleaned up")
	}
}

func TestProcessRemoteURLCompletes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write(make([]byte, 32*1024))
	}))
	defer srv.Close()

	fx := newWorkerFixture(t, &stubRunner{probeJSON: stubProbeJSON, segments: 3})
	task := enqueue(t, fx, "job1", model.IngestPayload{
		VideoID:   "vid1",
		SourceURL: srv.URL,
		Title:     "clip",
		Qualities: []string{"720p"},
	})

	if err := fx.worker.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}

	job, _ := fx.registry.Get(context.Background(), "job1")
	if job.Status != model.JobStatusCompleted {
		t.Errorf("status = %s (error: %s)", job.Status, job.Error)
	}
}

func TestProcessDownloadFailureFailsJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	fx := newWorkerFixture(t, &stubRunner{probeJSON: stubProbeJSON, segments: 3})
	task := enqueue(t, fx, "job1", model.IngestPayload{
		VideoID:   "vid1",
		SourceURL: srv.URL,
	})

	if err := fx.worker.ProcessTask(context.Background(), task); err == nil {
		t.Fatal("ProcessTask succeeded, want download failure")
	}

	job, _ := fx.registry.Get(context.Background(), "job1")
	if job.Status != model.JobStatusFailed {
		t.Errorf("status = %s, want failed", job.Status)
	}
	if job.Error == "" {
		t.Error("failed job carries no error")
	}
}

func TestProcessEncodeFailureFailsJobAndCleansUp(t *testing.T) {
	fx := newWorkerFixture(t, &stubRunner{probeJSON: stubProbeJSON, segments: 3, failTier: "scale=-2:720"})
	input := tempInput(t)

	task := enqueue(t, fx, "job1", model.IngestPayload{
		VideoID:   "vid1",
		InputPath: input,
		Qualities: []string{"720p"},
	})

	if err := fx.worker.ProcessTask(context.Background(), task); err == nil {
		t.Fatal("ProcessTask succeeded, want encode failure")
	}

	job, _ := fx.registry.Get(context.Background(), "job1")
	if job.Status != model.JobStatusFailed {
		t.Errorf("status = %s, want failed", job.Status)
	}
	if job.FailedAt == nil {
		t.Error("failedAt not stamped")
	}

	// Cleanup is unconditional: the temp input goes even on failure.
	if _, err := os.Stat(input); !os.IsNotExist(err) {
		t.Error("temp input not cleaned up after failure")
	}
}
