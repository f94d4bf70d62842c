package tiered_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"mediavault/internal/httprange"
	"mediavault/internal/logging"
	"mediavault/internal/testsupport"
	"mediavault/internal/tiered"
)

type stubCache struct {
	path  string
	total int64
	err   error
}

func (s *stubCache) GetCachedFilePath(context.Context, string) (string, int64, error) {
	return s.path, s.total, s.err
}

type stubRemote struct {
	size    int64
	fetches []*httprange.Range
}

func (s *stubRemote) GetMetadata(context.Context, string) (int64, error) {
	return s.size, nil
}

func (s *stubRemote) GetStream(_ context.Context, _ string, rng *httprange.Range) (io.ReadCloser, error) {
	s.fetches = append(s.fetches, rng)
	buf := make([]byte, rng.Length())
	for i := range buf {
		buf[i] = testsupport.PatternByte(rng.Start + int64(i))
	}
	return io.NopCloser(bytes.NewReader(buf)), nil
}

func readAll(t *testing.T, stream io.ReadCloser) []byte {
	t.Helper()
	defer stream.Close()
	body, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	return body
}

func checkPattern(t *testing.T, body []byte, start int64) {
	t.Helper()
	for i, b := range body {
		if want := testsupport.PatternByte(start + int64(i)); b != want {
			t.Fatalf("byte %d: got %d want %d", i, b, want)
		}
	}
}

// newStitchSource builds a 2000-byte file with a 1000-byte cached prefix.
func newStitchSource(t *testing.T) (*tiered.Source, *stubRemote) {
	t.Helper()
	local := filepath.Join(t.TempDir(), "cached.bin")
	testsupport.WriteFile(t, local, 1000)
	remote := &stubRemote{size: 2000}
	cache := &stubCache{path: local, total: 2000}
	return tiered.NewSource(cache, remote, logging.NewNop()), remote
}

func TestOpenServesCachedPrefixOverlapOnly(t *testing.T) {
	source, remote := newStitchSource(t)

	stream, length, err := source.Open(context.Background(),
		"abc", &httprange.Range{Start: 0, End: 1999, TotalSize: 2000})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if length != 1000 {
		t.Fatalf("expected the cached overlap of 1000 bytes, got %d", length)
	}
	body := readAll(t, stream)
	if int64(len(body)) != length {
		t.Fatalf("stream yielded %d bytes, length said %d", len(body), length)
	}
	checkPattern(t, body, 0)
	if len(remote.fetches) != 0 {
		t.Fatalf("expected no remote fetch, got %d", len(remote.fetches))
	}
}

func TestOpenStartAtCacheBoundaryFetchesRemote(t *testing.T) {
	source, remote := newStitchSource(t)

	stream, length, err := source.Open(context.Background(),
		"abc", &httprange.Range{Start: 1000, End: 1999, TotalSize: 2000})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if length != 1000 {
		t.Fatalf("expected 1000 bytes, got %d", length)
	}
	checkPattern(t, readAll(t, stream), 1000)
	if len(remote.fetches) != 1 {
		t.Fatalf("expected one remote fetch, got %d", len(remote.fetches))
	}
}

func TestOpenStartBeyondCacheFetchesRemote(t *testing.T) {
	source, remote := newStitchSource(t)

	stream, length, err := source.Open(context.Background(),
		"abc", &httprange.Range{Start: 1500, End: 1999, TotalSize: 2000})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if length != 500 {
		t.Fatalf("expected 500 bytes, got %d", length)
	}
	checkPattern(t, readAll(t, stream), 1500)
	if len(remote.fetches) != 1 {
		t.Fatalf("expected one remote fetch, got %d", len(remote.fetches))
	}
}

func TestOpenNoRangeDefaultsToWholeFile(t *testing.T) {
	source, _ := newStitchSource(t)

	stream, length, err := source.Open(context.Background(), "abc", nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	// Whole-file window starts at 0, inside the cached prefix.
	if length != 1000 {
		t.Fatalf("expected cached prefix length, got %d", length)
	}
	checkPattern(t, readAll(t, stream), 0)
}

func TestOpenMissingLocalCopyFetchesRemote(t *testing.T) {
	cache := &stubCache{path: filepath.Join(t.TempDir(), "absent.bin"), total: 2000}
	remote := &stubRemote{size: 2000}
	source := tiered.NewSource(cache, remote, logging.NewNop())

	stream, length, err := source.Open(context.Background(),
		"abc", &httprange.Range{Start: 0, End: 99, TotalSize: 2000})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if length != 100 {
		t.Fatalf("expected 100 bytes, got %d", length)
	}
	checkPattern(t, readAll(t, stream), 0)
	if len(remote.fetches) != 1 {
		t.Fatalf("expected remote fetch for cold cache, got %d", len(remote.fetches))
	}
}

func TestOpenCacheLookupFailureFallsBackToRemote(t *testing.T) {
	cache := &stubCache{err: errors.New("cache manager offline")}
	remote := &stubRemote{size: 300}
	source := tiered.NewSource(cache, remote, logging.NewNop())

	stream, length, err := source.Open(context.Background(), "abc", nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if length != 300 {
		t.Fatalf("expected whole remote file, got %d bytes", length)
	}
	checkPattern(t, readAll(t, stream), 0)
}
