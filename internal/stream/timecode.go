package stream

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidTimecode is returned for timestamp text that is neither a bare
// number of seconds nor a valid HH:MM:SS / MM:SS / SS string.
var ErrInvalidTimecode = errors.New("invalid timecode")

// TimestampToIndex maps a playback timestamp to the chunk covering it.
func TimestampToIndex(timestamp float64, chunkDuration int) int {
	if chunkDuration <= 0 {
		return 0
	}
	return int(math.Floor(timestamp / float64(chunkDuration)))
}

// IndexToTimestamp returns the start timestamp of a chunk.
func IndexToTimestamp(index, chunkDuration int) float64 {
	return float64(index * chunkDuration)
}

// ParseTimecode accepts a bare number of seconds ("45", "12.5") or colon
// notation ("HH:MM:SS", "MM:SS") and returns seconds.
func ParseTimecode(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidTimecode
	}

	if !strings.Contains(s, ":") {
		v, err := parseField(s)
		if err != nil {
			return 0, err
		}
		return v, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, ErrInvalidTimecode
	}

	var total float64
	for i, part := range parts {
		v, err := parseField(part)
		if err != nil {
			return 0, err
		}
		// Minute and second fields carry at most 59-and-change.
		if i > 0 && v >= 60 {
			return 0, ErrInvalidTimecode
		}
		total = total*60 + v
	}
	return total, nil
}

// parseField accepts plain decimal notation only; exponent and inf/nan
// spellings that ParseFloat would otherwise allow are rejected.
func parseField(s string) (float64, error) {
	if strings.ContainsAny(s, "eExXpPnNiI") {
		return 0, ErrInvalidTimecode
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, ErrInvalidTimecode
	}
	return v, nil
}
