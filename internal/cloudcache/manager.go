package cloudcache

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"mediavault/internal/config"
	"mediavault/internal/httprange"
	"mediavault/internal/logging"
)

// Remote fetches bytes and metadata for remotely hosted files.
type Remote interface {
	GetMetadata(ctx context.Context, fileID string) (int64, error)
	GetStream(ctx context.Context, fileID string, rng *httprange.Range) (io.ReadCloser, error)
}

// Manager tracks local partial copies of cloud files. Each copy is a
// contiguous prefix of the remote file; the prefix only ever grows.
type Manager struct {
	dir        string
	remote     Remote
	chunkBytes int64
	minFree    int64
	logger     *slog.Logger

	mu    sync.Mutex
	sizes map[string]int64
}

// NewManager builds a cache manager rooted at the config's remote cache
// directory.
func NewManager(cfg *config.Config, remote Remote, logger *slog.Logger) *Manager {
	return &Manager{
		dir:        cfg.RemoteCacheDir(),
		remote:     remote,
		chunkBytes: cfg.Cloud.PrefetchChunkBytes(),
		minFree:    cfg.Cloud.MinFreeBytes(),
		logger:     logging.NewComponentLogger(logger, "cloudcache"),
		sizes:      make(map[string]int64),
	}
}

// GetCachedFilePath resolves the local partial-copy path and total remote
// size for a file id. Remote metadata is memoized per id.
func (m *Manager) GetCachedFilePath(ctx context.Context, fileID string) (string, int64, error) {
	m.mu.Lock()
	size, known := m.sizes[fileID]
	m.mu.Unlock()

	if !known {
		fetched, err := m.remote.GetMetadata(ctx, fileID)
		if err != nil {
			return "", 0, err
		}
		m.mu.Lock()
		m.sizes[fileID] = fetched
		m.mu.Unlock()
		size = fetched
	}
	return m.localPath(fileID), size, nil
}

// CachedBytes reports the length of the locally cached prefix. Any stat
// failure reads as an empty cache; a cold cache is a normal state.
func (m *Manager) CachedBytes(fileID string) int64 {
	info, err := os.Stat(m.localPath(fileID))
	if err != nil {
		return 0
	}
	return info.Size()
}

// Headroom reports free bytes on the cache filesystem.
func (m *Manager) Headroom() (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(m.dir, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", m.dir, err)
	}
	return int64(stat.Bavail) * stat.Bsize, nil
}

// Prefetch appends up to one chunk of remote bytes to the local partial copy
// and reports how many bytes were added. It returns zero work done when the
// copy is already complete or the cache disk is below its free-space floor.
func (m *Manager) Prefetch(ctx context.Context, fileID string) (int64, error) {
	path, total, err := m.GetCachedFilePath(ctx, fileID)
	if err != nil {
		return 0, err
	}

	cached := m.CachedBytes(fileID)
	if cached >= total {
		return 0, nil
	}

	if m.minFree > 0 {
		free, err := m.Headroom()
		if err != nil || free < m.minFree {
			m.logger.Debug("prefetch paused for disk headroom",
				logging.String(logging.FieldFileID, fileID),
				logging.Int64("free_bytes", free))
			return 0, nil
		}
	}

	end := cached + m.chunkBytes
	if end > total {
		end = total
	}
	rng := &httprange.Range{Start: cached, End: end - 1, TotalSize: total}

	stream, err := m.remote.GetStream(ctx, fileID, rng)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return 0, fmt.Errorf("create cache dir: %w", err)
	}
	// O_APPEND keeps the prefix contiguous: writes land exactly at the
	// current cached length.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open partial copy: %w", err)
	}
	defer f.Close()

	appended, err := io.Copy(f, io.LimitReader(stream, rng.Length()))
	if err != nil {
		return appended, fmt.Errorf("append prefetched bytes: %w", err)
	}
	m.logger.Debug("prefetched chunk",
		logging.String(logging.FieldFileID, fileID),
		logging.Int64("appended", appended),
		logging.Int64("cached", cached+appended),
		logging.Int64("total", total))
	return appended, nil
}

func (m *Manager) localPath(fileID string) string {
	name := uuid.NewSHA1(uuid.NameSpaceURL, []byte(fileID)).String() + ".bin"
	return filepath.Join(m.dir, name)
}
