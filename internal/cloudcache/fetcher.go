package cloudcache

import (
	"context"
	"sync"

	"log/slog"

	"mediavault/internal/logging"
)

// Fetcher grows partial copies in the background. Requests are deduplicated
// per file id; one goroutine drains the queue so prefetching never competes
// with itself for disk bandwidth.
type Fetcher struct {
	manager *Manager
	logger  *slog.Logger

	mu     sync.Mutex
	queued map[string]bool
	wake   chan struct{}
}

// NewFetcher builds a stopped fetcher; call Run to start draining.
func NewFetcher(manager *Manager, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		manager: manager,
		logger:  logging.NewComponentLogger(logger, "prefetcher"),
		queued:  make(map[string]bool),
		wake:    make(chan struct{}, 1),
	}
}

// Request asks for a file's local copy to be grown to completion. Duplicate
// requests while the id is queued are merged.
func (f *Fetcher) Request(fileID string) {
	f.mu.Lock()
	f.queued[fileID] = true
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Run drains the queue until the context is cancelled. Each pass appends one
// chunk per queued file, so a single huge file cannot monopolize the loop.
func (f *Fetcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.wake:
		}

		for {
			fileID, ok := f.next()
			if !ok {
				break
			}
			if ctx.Err() != nil {
				return
			}

			appended, err := f.manager.Prefetch(ctx, fileID)
			if err != nil {
				f.logger.Warn("prefetch failed",
					logging.String(logging.FieldFileID, fileID),
					logging.Error(err))
				continue
			}
			if appended > 0 {
				// More to do; requeue for the next pass.
				f.Request(fileID)
			}
		}
	}
}

// next pops one queued id.
func (f *Fetcher) next() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for fileID := range f.queued {
		delete(f.queued, fileID)
		return fileID, true
	}
	return "", false
}
