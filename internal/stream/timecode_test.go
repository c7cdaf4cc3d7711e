package stream

import (
	"errors"
	"testing"
)

func TestTimestampToIndex(t *testing.T) {
	cases := []struct {
		timestamp     float64
		chunkDuration int
		want          int
	}{
		{0, 5, 0},
		{4.9, 5, 0},
		{5, 5, 1},
		{10, 5, 2},
		{12, 5, 2},
		{59.9, 10, 5},
	}

	for _, tc := range cases {
		if got := TimestampToIndex(tc.timestamp, tc.chunkDuration); got != tc.want {
			t.Errorf("TimestampToIndex(%v, %d) = %d, want %d", tc.timestamp, tc.chunkDuration, got, tc.want)
		}
	}
}

func TestIndexToTimestamp(t *testing.T) {
	if got := IndexToTimestamp(2, 5); got != 10 {
		t.Errorf("IndexToTimestamp(2, 5) = %v, want 10", got)
	}
	if got := IndexToTimestamp(0, 10); got != 0 {
		t.Errorf("IndexToTimestamp(0, 10) = %v, want 0", got)
	}
}

func TestParseTimecode(t *testing.T) {
	cases := []struct {
		input string
		want  float64
	}{
		{"45", 45},
		{"12.5", 12.5},
		{"02:03", 123},
		{"01:02:03", 3723},
		{"00:00:00", 0},
		{"1:59.5", 119.5},
	}

	for _, tc := range cases {
		got, err := ParseTimecode(tc.input)
		if err != nil {
			t.Errorf("ParseTimecode(%q) unexpected error: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseTimecode(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestParseTimecodeInvalid(t *testing.T) {
	// Minute and second fields are bounded below 60, and only plain decimal
	// notation is accepted.
	for _, input := range []string{"", "ab:cd", "1:2:3:4", "-5", "1:-2", "abc", "1:99", "0:60", "1e3", "1:1e1", "inf", "NaN", "0x10"} {
		if _, err := ParseTimecode(input); !errors.Is(err, ErrInvalidTimecode) {
			t.Errorf("ParseTimecode(%q) = %v, want ErrInvalidTimecode", input, err)
		}
	}
}
