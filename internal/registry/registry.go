package registry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/chunkstream/api/internal/model"
)

// Registry enforces the job state machine over a Store: forward-only status
// transitions, monotonically non-decreasing progress while non-terminal, and
// terminal states that absorb all further updates.
type Registry struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Registry {
	return &Registry{store: store, now: time.Now}
}

// WithClock overrides the clock, for tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Create inserts the initial record for a job.
func (r *Registry) Create(ctx context.Context, jobID, videoID string) (*model.Job, error) {
	now := r.now()
	job := &model.Job{
		ID:        jobID,
		VideoID:   videoID,
		Status:    model.JobStatusInitializing,
		Progress:  0,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.Put(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Update merges a patch into the job record and stamps updatedAt. Illegal
// transitions (backwards, or out of a terminal state) are rejected. Progress
// never decreases; it is forced to 100 on completion.
func (r *Registry) Update(ctx context.Context, jobID string, patch model.JobPatch) (*model.Job, error) {
	job, err := r.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status.Terminal() {
		if patch.Status != nil && *patch.Status != job.Status {
			return nil, fmt.Errorf("illegal transition %s -> %s for job %s", job.Status, *patch.Status, jobID)
		}
		// Terminal records absorb field patches; a stray late progress or
		// stage update must not rewrite history.
		return job, nil
	}

	if patch.Status != nil && *patch.Status != job.Status {
		if !job.Status.CanTransitionTo(*patch.Status) {
			return nil, fmt.Errorf("illegal transition %s -> %s for job %s", job.Status, *patch.Status, jobID)
		}
		job.Status = *patch.Status
	}

	if patch.Progress != nil && *patch.Progress > job.Progress {
		job.Progress = *patch.Progress
	}
	if patch.Stage != nil {
		job.Stage = *patch.Stage
	}
	if patch.Error != nil {
		job.Error = *patch.Error
	}
	if patch.Result != nil {
		job.Result = patch.Result
	}

	now := r.now()
	job.UpdatedAt = now
	switch job.Status {
	case model.JobStatusCompleted:
		if job.CompletedAt == nil {
			job.CompletedAt = &now
		}
		job.Progress = 100
	case model.JobStatusFailed:
		if job.FailedAt == nil {
			job.FailedAt = &now
		}
	}

	if err := r.store.Put(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Get returns one job record.
func (r *Registry) Get(ctx context.Context, jobID string) (*model.Job, error) {
	return r.store.Get(ctx, jobID)
}

// List returns the most recent limit jobs, newest first.
func (r *Registry) List(ctx context.Context, limit int) ([]*model.Job, error) {
	jobs, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.After(jobs[j].StartedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// Delete removes the tracking record and returns it so the caller can cancel
// any in-flight work.
func (r *Registry) Delete(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := r.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := r.store.Delete(ctx, jobID); err != nil {
		return nil, err
	}
	return job, nil
}
