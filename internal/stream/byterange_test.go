package stream

import "testing"

func TestParseByteRange(t *testing.T) {
	cases := []struct {
		header string
		size   int64
		want   *ByteRange
	}{
		{"bytes=0-99", 1000, &ByteRange{Start: 0, End: 99, Length: 100}},
		{"bytes=100-", 1000, &ByteRange{Start: 100, End: 999, Length: 900}},
		{"bytes=-0", 1000, &ByteRange{Start: 0, End: 0, Length: 1}},
		{"bytes=500-500", 1000, &ByteRange{Start: 500, End: 500, Length: 1}},
		{"bytes=0-999", 1000, &ByteRange{Start: 0, End: 999, Length: 1000}},
	}

	for _, tc := range cases {
		got := ParseByteRange(tc.header, tc.size)
		if got == nil {
			t.Errorf("ParseByteRange(%q, %d) = nil, want %+v", tc.header, tc.size, tc.want)
			continue
		}
		if *got != *tc.want {
			t.Errorf("ParseByteRange(%q, %d) = %+v, want %+v", tc.header, tc.size, got, tc.want)
		}
	}
}

func TestParseByteRangeFullEntity(t *testing.T) {
	// All of these mean "serve the full entity", not an error.
	for _, header := range []string{
		"",
		"bytes=",
		"bytes=-",
		"bytes=abc-def",
		"bytes=99-0",
		"bytes=1000-1001",
		"bytes=0-1000",
		"bytes=0-99,200-299",
		"chunks=0-99",
	} {
		if got := ParseByteRange(header, 1000); got != nil {
			t.Errorf("ParseByteRange(%q, 1000) = %+v, want nil", header, got)
		}
	}
}

func TestContentRange(t *testing.T) {
	r := &ByteRange{Start: 100, End: 999, Length: 900}
	if got := r.ContentRange(1000); got != "bytes 100-999/1000" {
		t.Errorf("ContentRange = %q", got)
	}
}
