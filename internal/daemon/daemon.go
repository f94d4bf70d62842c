package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"mediavault/internal/cloudcache"
	"mediavault/internal/config"
	"mediavault/internal/deps"
	"mediavault/internal/hls"
	"mediavault/internal/httprange"
	"mediavault/internal/library"
	"mediavault/internal/logging"
	"mediavault/internal/streamserver"
	"mediavault/internal/tiered"
)

// Daemon wires the library worker, the transcode manager, and the stream
// server together and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	library *library.Client
	hls     *hls.Manager
	stream  *streamserver.Server
	cache   *cloudcache.Manager
	fetcher *cloudcache.Fetcher

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running          bool
	PID              int
	MediaAddr        string
	LockFilePath     string
	DatabasePath     string
	StartedAt        time.Time
	ActiveTranscodes int
	Sessions         []hls.SessionInfo
	CacheFreeBytes   int64
	Library          *library.Stats
	Dependencies     []deps.Status
}

// New constructs a daemon with initialized collaborators. Nothing runs until
// Start.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		library:  library.NewClient(cfg, logger),
		hls:      hls.NewManager(cfg, logger),
		lockPath: filepath.Join(cfg.Paths.LogDir, "mediavaultd.lock"),
	}
	d.lock = flock.New(d.lockPath)

	opts := []streamserver.Option{
		streamserver.WithViewHook(d.recordView),
	}
	if cfg.Cloud.BaseURL != "" {
		provider := cloudcache.NewHTTPProvider(cfg.Cloud.BaseURL)
		d.cache = cloudcache.NewManager(cfg, provider, logger)
		d.fetcher = cloudcache.NewFetcher(d.cache, logger)
		source := tiered.NewSource(d.cache, provider, logger)
		opts = append(opts, streamserver.WithCloudSource(&prefetchingSource{
			Source:  source,
			fetcher: d.fetcher,
		}))
	}

	auth := streamserver.NewRootAuthorizer(cfg.Paths.LibraryDirs)
	d.stream = streamserver.New(cfg, auth, d.hls, logger, opts...)
	return d, nil
}

// Start acquires the instance lock, brings up the library worker, and begins
// serving. An initial scan runs in the background so startup is not gated on
// walking large libraries.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mediavault daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if err := d.library.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		return fmt.Errorf("start library worker: %w", err)
	}

	if err := d.stream.Start(d.ctx); err != nil {
		d.library.Terminate()
		_ = d.lock.Unlock()
		d.cancel()
		return err
	}

	go d.hls.Run(d.ctx)
	if d.fetcher != nil {
		go d.fetcher.Run(d.ctx)
	}
	go d.initialScan()

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("mediavault daemon started",
		logging.String("lock", d.lockPath),
		logging.String("media_addr", d.stream.Addr()))
	return nil
}

// Stop shuts everything down and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.stream.Stop()
	d.hls.StopAll()
	d.library.Terminate()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("mediavault daemon stopped")
}

// Scan triggers a library scan over the configured roots.
func (d *Daemon) Scan(ctx context.Context) (*library.ScanSummary, error) {
	return d.library.Scan(ctx, d.cfg.Paths.LibraryDirs)
}

// ListFiles fetches indexed files through the library worker.
func (d *Daemon) ListFiles(ctx context.Context, kind library.Kind, limit int) ([]library.File, error) {
	return d.library.List(ctx, kind, limit)
}

// LibraryStats aggregates the index through the library worker.
func (d *Daemon) LibraryStats(ctx context.Context) (*library.Stats, error) {
	return d.library.Stats(ctx)
}

// Sessions snapshots the transcode pool.
func (d *Daemon) Sessions() []hls.SessionInfo {
	return d.hls.Sessions()
}

// StopSession evicts one transcode session by id.
func (d *Daemon) StopSession(sessionID string) error {
	return d.hls.StopSession(sessionID)
}

// MediaAddr reports where the stream server is bound.
func (d *Daemon) MediaAddr() string {
	return d.stream.Addr()
}

// LogPath reports the daemon log file location.
func (d *Daemon) LogPath() string {
	if d.cfg.Paths.LogDir == "" {
		return ""
	}
	return filepath.Join(d.cfg.Paths.LogDir, "mediavault.log")
}

// Status assembles runtime information. Library stats are fetched
// best-effort with a short deadline so a slow worker cannot stall status
// output.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:          d.running.Load(),
		PID:              os.Getpid(),
		MediaAddr:        d.stream.Addr(),
		LockFilePath:     d.lockPath,
		DatabasePath:     d.cfg.DatabasePath(),
		StartedAt:        d.startedAt,
		ActiveTranscodes: d.hls.ActiveCount(),
		Sessions:         d.hls.Sessions(),
		Dependencies:     []deps.Status{deps.CheckFFmpeg(d.cfg.FFmpegBinary())},
	}
	if d.cache != nil {
		if free, err := d.cache.Headroom(); err == nil {
			status.CacheFreeBytes = free
		}
	}
	if status.Running {
		statsCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if stats, err := d.library.Stats(statsCtx); err == nil {
			status.Library = stats
		}
	}
	return status
}

// Close stops the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

func (d *Daemon) initialScan() {
	summary, err := d.library.Scan(d.ctx, d.cfg.Paths.LibraryDirs)
	if err != nil {
		d.logger.Warn("initial library scan failed", logging.Error(err))
		return
	}
	d.logger.Info("initial library scan complete",
		logging.Int64("scanned", summary.Scanned),
		logging.Int64("added", summary.Added),
		logging.Int64("removed", summary.Removed))
}

// recordView is best-effort: playback must not fail because bookkeeping did.
func (d *Daemon) recordView(path string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		file, err := d.library.GetByPath(ctx, path)
		if err != nil {
			d.logger.Debug("view not recorded", logging.String("path", path), logging.Error(err))
			return
		}
		if err := d.library.RecordView(ctx, file.ID); err != nil {
			d.logger.Debug("view not recorded",
				logging.Int64(logging.FieldFileID, file.ID),
				logging.Error(err))
		}
	}()
}

// prefetchingSource kicks the background fetcher whenever a cloud file is
// read, so the cached prefix keeps growing between requests.
type prefetchingSource struct {
	*tiered.Source
	fetcher *cloudcache.Fetcher
}

func (p *prefetchingSource) Open(ctx context.Context, fileID string, rng *httprange.Range) (io.ReadCloser, int64, error) {
	p.fetcher.Request(fileID)
	return p.Source.Open(ctx, fileID, rng)
}
