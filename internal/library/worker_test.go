package library_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"mediavault/internal/library"
	"mediavault/internal/logging"
	"mediavault/internal/testsupport"
	"mediavault/internal/worker"
)

func runDispatcher(t *testing.T, srv *worker.Server, lines ...string) map[uint64]worker.Result {
	t.Helper()
	input := strings.Join(lines, "\n") + "\n"
	var out bytes.Buffer
	if err := srv.Serve(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}

	results := make(map[uint64]worker.Result)
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var resp worker.Response
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatalf("malformed reply %q: %v", scanner.Text(), err)
		}
		results[resp.ID] = resp.Result
	}
	return results
}

func mustSucceed(t *testing.T, results map[uint64]worker.Result, id uint64) json.RawMessage {
	t.Helper()
	result, ok := results[id]
	if !ok {
		t.Fatalf("no reply for id %d", id)
	}
	if !result.Success {
		t.Fatalf("request %d failed: %s", id, result.Error)
	}
	return result.Data
}

func TestWorkerScanListGetView(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	libDir := cfg.Paths.LibraryDirs[0]
	testsupport.WriteFile(t, filepath.Join(libDir, "movies", "first_film.mp4"), 64)
	testsupport.WriteFile(t, filepath.Join(libDir, "photos", "trip.jpg"), 32)

	srv := library.NewWorkerServer(cfg, logging.NewNop())

	scanPayload, err := json.Marshal(library.ScanRequest{Dirs: cfg.Paths.LibraryDirs})
	if err != nil {
		t.Fatalf("marshal scan request: %v", err)
	}

	results := runDispatcher(t, srv,
		`{"id":1,"type":"init"}`,
		fmt.Sprintf(`{"id":2,"type":"scan_library","payload":%s}`, scanPayload),
		`{"id":3,"type":"list_files"}`,
		`{"id":4,"type":"library_stats"}`,
		`{"id":5,"type":"close"}`,
	)

	mustSucceed(t, results, 1)

	var summary library.ScanSummary
	if err := json.Unmarshal(mustSucceed(t, results, 2), &summary); err != nil {
		t.Fatalf("decode scan summary: %v", err)
	}
	if summary.Scanned != 2 || summary.Added != 2 {
		t.Fatalf("unexpected scan summary: %+v", summary)
	}

	var files []library.File
	if err := json.Unmarshal(mustSucceed(t, results, 3), &files); err != nil {
		t.Fatalf("decode file list: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}

	var stats library.Stats
	if err := json.Unmarshal(mustSucceed(t, results, 4), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.VideoFiles != 1 || stats.ImageFiles != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestWorkerGetAndRecordView(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	libDir := cfg.Paths.LibraryDirs[0]
	path := filepath.Join(libDir, "clip.mp4")
	testsupport.WriteFile(t, path, 16)

	srv := library.NewWorkerServer(cfg, logging.NewNop())

	scanPayload, err := json.Marshal(library.ScanRequest{Dirs: cfg.Paths.LibraryDirs})
	if err != nil {
		t.Fatalf("marshal scan request: %v", err)
	}
	getPayload, err := json.Marshal(library.GetRequest{Path: path})
	if err != nil {
		t.Fatalf("marshal get request: %v", err)
	}

	results := runDispatcher(t, srv,
		`{"id":1,"type":"init"}`,
		fmt.Sprintf(`{"id":2,"type":"scan_library","payload":%s}`, scanPayload),
		fmt.Sprintf(`{"id":3,"type":"get_file","payload":%s}`, getPayload),
		`{"id":4,"type":"record_view","payload":{"id":1}}`,
		`{"id":5,"type":"get_file","payload":{"id":1}}`,
		`{"id":6,"type":"get_file","payload":{"id":42}}`,
		`{"id":7,"type":"close"}`,
	)

	var byPath library.File
	if err := json.Unmarshal(mustSucceed(t, results, 3), &byPath); err != nil {
		t.Fatalf("decode file: %v", err)
	}
	if byPath.Path != path || byPath.Kind != library.KindVideo {
		t.Fatalf("unexpected file: %+v", byPath)
	}

	mustSucceed(t, results, 4)

	var viewed library.File
	if err := json.Unmarshal(mustSucceed(t, results, 5), &viewed); err != nil {
		t.Fatalf("decode viewed file: %v", err)
	}
	if viewed.ViewCount != 1 {
		t.Fatalf("expected 1 view, got %d", viewed.ViewCount)
	}

	if missing := results[6]; missing.Success {
		t.Fatal("expected get for unknown id to fail")
	}
}
