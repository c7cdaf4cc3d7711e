package registry

import (
	"context"
	"sync"
)

// Canceller tracks the cancel function of each in-flight job so deleting a
// job can stop its subprocess and network work, not just drop the record.
type Canceller struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewCanceller() *Canceller {
	return &Canceller{cancels: make(map[string]context.CancelFunc)}
}

// Register derives a cancellable context for a job and remembers its cancel
// function until Release.
func (c *Canceller) Register(ctx context.Context, jobID string) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancels[jobID] = cancel
	c.mu.Unlock()
	return ctx
}

// Release forgets a finished job.
func (c *Canceller) Release(jobID string) {
	c.mu.Lock()
	delete(c.cancels, jobID)
	c.mu.Unlock()
}

// Cancel stops an in-flight job if one is registered.
func (c *Canceller) Cancel(jobID string) {
	c.mu.Lock()
	cancel, ok := c.cancels[jobID]
	c.mu.Unlock()
	if ok {
		cancel()
	}
}
