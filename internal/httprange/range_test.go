package httprange_test

import (
	"errors"
	"testing"

	"mediavault/internal/httprange"
	"mediavault/internal/services"
)

func TestResolveNoHeaderServesWholeFile(t *testing.T) {
	rng, err := httprange.Resolve("", 2048)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if rng != nil {
		t.Fatalf("expected nil range for missing header, got %+v", rng)
	}
}

func TestResolveValidWindows(t *testing.T) {
	cases := []struct {
		name      string
		header    string
		totalSize int64
		wantStart int64
		wantEnd   int64
	}{
		{"full_window", "bytes=0-1999", 2000, 0, 1999},
		{"open_end", "bytes=500-", 2000, 500, 1999},
		{"single_byte", "bytes=0-0", 1, 0, 0},
		{"interior", "bytes=100-200", 2000, 100, 200},
		{"last_byte", "bytes=1999-1999", 2000, 1999, 1999},
		{"whitespace", "  bytes=10-20  ", 100, 10, 20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rng, err := httprange.Resolve(tc.header, tc.totalSize)
			if err != nil {
				t.Fatalf("Resolve(%q, %d) returned error: %v", tc.header, tc.totalSize, err)
			}
			if rng == nil {
				t.Fatal("expected range")
			}
			if rng.Start != tc.wantStart || rng.End != tc.wantEnd {
				t.Fatalf("got [%d,%d], want [%d,%d]", rng.Start, rng.End, tc.wantStart, tc.wantEnd)
			}
			if rng.Length() != tc.wantEnd-tc.wantStart+1 {
				t.Fatalf("unexpected length %d", rng.Length())
			}
			if rng.TotalSize != tc.totalSize {
				t.Fatalf("unexpected total size %d", rng.TotalSize)
			}
		})
	}
}

func TestResolveRejections(t *testing.T) {
	cases := []struct {
		name      string
		header    string
		totalSize int64
	}{
		{"start_at_size", "bytes=2000-", 2000},
		{"start_beyond_size", "bytes=5000-6000", 2000},
		{"end_beyond_size", "bytes=0-2000", 2000},
		{"inverted", "bytes=300-200", 2000},
		{"start_not_number", "bytes=abc-100", 2000},
		{"end_not_number", "bytes=0-xyz", 2000},
		{"negative_start", "bytes=-100-200", 2000},
		{"suffix_form", "bytes=-500", 2000},
		{"wrong_unit", "items=0-10", 2000},
		{"no_separator", "bytes=42", 2000},
		{"empty_file", "bytes=0-0", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rng, err := httprange.Resolve(tc.header, tc.totalSize)
			if err == nil {
				t.Fatalf("expected rejection, got %+v", rng)
			}
			if !errors.Is(err, services.ErrInvalidRange) {
				t.Fatalf("expected ErrInvalidRange, got %v", err)
			}
		})
	}
}

func TestContentRangeFormatting(t *testing.T) {
	rng := httprange.Range{Start: 100, End: 200, TotalSize: 2000}
	if got := rng.ContentRange(); got != "bytes 100-200/2000" {
		t.Fatalf("unexpected content range %q", got)
	}
	if got := httprange.UnsatisfiableContentRange(2000); got != "bytes */2000" {
		t.Fatalf("unexpected unsatisfiable content range %q", got)
	}
}
