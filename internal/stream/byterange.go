package stream

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteRange is an inclusive byte interval within a chunk file.
type ByteRange struct {
	Start  int64
	End    int64
	Length int64
}

// ParseByteRange parses a single-range "bytes=start-end" header where either
// bound may be omitted. It returns nil when the header is absent, malformed,
// multi-range, or out of bounds; callers serve the full entity in that case.
func ParseByteRange(header string, size int64) *ByteRange {
	if header == "" || size <= 0 {
		return nil
	}

	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return nil
	}

	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		return nil
	}

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return nil
	}

	startStr := strings.TrimSpace(parts[0])
	endStr := strings.TrimSpace(parts[1])
	if startStr == "" && endStr == "" {
		return nil
	}

	start := int64(0)
	end := size - 1

	if startStr != "" {
		v, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil || v < 0 {
			return nil
		}
		start = v
	}
	if endStr != "" {
		v, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || v < 0 {
			return nil
		}
		end = v
	}

	if start > end || start >= size || end >= size {
		return nil
	}

	return &ByteRange{Start: start, End: end, Length: end - start + 1}
}

// ContentRange formats the Content-Range header for a 206 response.
func (r *ByteRange) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}
