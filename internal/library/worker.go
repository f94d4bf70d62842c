package library

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"time"

	"log/slog"

	"mediavault/internal/config"
	"mediavault/internal/logging"
	"mediavault/internal/scanner"
	"mediavault/internal/worker"
)

// Message types handled by the library worker.
const (
	TypeScanLibrary  = "scan_library"
	TypeListFiles    = "list_files"
	TypeGetFile      = "get_file"
	TypeRecordView   = "record_view"
	TypeLibraryStats = "library_stats"
)

// ScanRequest names the directories one scan pass covers.
type ScanRequest struct {
	Dirs []string `json:"dirs"`
}

// ListRequest filters a listing. Zero values mean "everything".
type ListRequest struct {
	Kind  Kind `json:"kind,omitempty"`
	Limit int  `json:"limit,omitempty"`
}

// GetRequest identifies one file by id or, when ID is zero, by path.
type GetRequest struct {
	ID   int64  `json:"id,omitempty"`
	Path string `json:"path,omitempty"`
}

// ViewRequest records one playback of a file.
type ViewRequest struct {
	ID int64 `json:"id"`
}

// NewWorkerServer builds the dispatcher the library worker process runs. The
// store opens during the init handshake so open failures surface to the
// daemon as init errors.
func NewWorkerServer(cfg *config.Config, logger *slog.Logger) *worker.Server {
	log := logging.NewComponentLogger(logger, "library-worker")

	var store *Store
	srv := worker.NewServer(logger,
		func(context.Context) error {
			opened, err := Open(cfg)
			if err != nil {
				return err
			}
			store = opened
			return nil
		},
		func() {
			_ = store.Close()
		},
	)

	srv.Register(TypeScanLibrary, func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req ScanRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("decode scan request: %w", err)
		}
		return runScan(ctx, store, log, req.Dirs)
	})

	srv.Register(TypeListFiles, func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req ListRequest
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &req); err != nil {
				return nil, fmt.Errorf("decode list request: %w", err)
			}
		}
		return store.List(ctx, req.Kind, req.Limit)
	})

	srv.Register(TypeGetFile, func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req GetRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("decode get request: %w", err)
		}
		if req.ID != 0 {
			return store.GetByID(ctx, req.ID)
		}
		return store.GetByPath(ctx, req.Path)
	})

	srv.Register(TypeRecordView, func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req ViewRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("decode view request: %w", err)
		}
		if err := store.RecordView(ctx, req.ID); err != nil {
			return nil, err
		}
		return map[string]bool{"recorded": true}, nil
	})

	srv.Register(TypeLibraryStats, func(ctx context.Context, payload json.RawMessage) (any, error) {
		return store.Stats(ctx)
	})

	return srv
}

func runScan(ctx context.Context, store *Store, log *slog.Logger, dirs []string) (*ScanSummary, error) {
	started := time.Now().UTC()
	summary := &ScanSummary{}

	for _, dir := range dirs {
		err := scanner.Walk(ctx, dir, func(path string, info fs.FileInfo) error {
			summary.Scanned++
			_, created, err := store.UpsertFile(ctx, File{
				Path:      path,
				Title:     DeriveTitle(path),
				Kind:      ClassifyKind(path),
				SizeBytes: info.Size(),
				ModTime:   info.ModTime(),
			})
			if err != nil {
				return err
			}
			if created {
				summary.Added++
			} else {
				summary.Updated++
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
	}

	// Pruning only runs after every directory scanned cleanly, so a failed
	// walk never empties the index.
	removed, err := store.PruneNotSeenSince(ctx, started)
	if err != nil {
		return nil, err
	}
	summary.Removed = removed

	log.Info("library scan complete",
		logging.Int64("scanned", summary.Scanned),
		logging.Int64("added", summary.Added),
		logging.Int64("updated", summary.Updated),
		logging.Int64("removed", summary.Removed))
	return summary, nil
}
