package stream

import (
	"errors"
	"fmt"
)

// ErrChunkNotFound means the backing file for a resolved chunk is absent.
// For an asset still being encoded this is expected soft state, not a fault.
var ErrChunkNotFound = errors.New("chunk file not found")

// OutOfRangeError reports a chunk index outside [0, totalChunks).
type OutOfRangeError struct {
	RequestedIndex int
	TotalChunks    int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("chunk index %d out of range [0, %d)", e.RequestedIndex, e.TotalChunks)
}

// QualityUnavailableError reports that neither the requested tier nor the
// default tier exists for the asset.
type QualityUnavailableError struct {
	Requested string
	Available []string
}

func (e *QualityUnavailableError) Error() string {
	return fmt.Sprintf("quality %q unavailable, have %v", e.Requested, e.Available)
}
