// Package registry tracks ingestion jobs through their forward-only
// lifecycle: initializing → downloading → processing → completed|failed.
// The driving background task is the only writer for a given job ID.
package registry

import (
	"context"
	"errors"

	"github.com/chunkstream/api/internal/model"
)

// ErrJobNotFound is returned for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// Store is the keyed record store behind the registry. The default memory
// backend is process-local and lost on restart; the redis backend shares
// records across instances. The state-machine rules live above the store, in
// Registry, and are identical for both.
type Store interface {
	Put(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, jobID string) (*model.Job, error)
	List(ctx context.Context) ([]*model.Job, error)
	Delete(ctx context.Context, jobID string) error
}
