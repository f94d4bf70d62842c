package hls

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"log/slog"

	"mediavault/internal/config"
	"mediavault/internal/logging"
	"mediavault/internal/services"
)

var commandContext = exec.CommandContext

// State describes one transcode session's lifecycle position.
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
	StateCrashed  State = "crashed"
)

const (
	// MasterPlaylist is the entry point players request first.
	MasterPlaylist = "master.m3u8"
	// VariantPlaylist appearing on disk marks the session Running.
	VariantPlaylist = "index.m3u8"
)

type session struct {
	id         string
	sourcePath string
	cacheDir   string
	state      State
	lastAccess time.Time
	cmd        *exec.Cmd
	holdsSlot  bool
}

// SessionInfo is an observable snapshot of one session.
type SessionInfo struct {
	ID         string    `json:"id"`
	SourcePath string    `json:"source_path"`
	State      State     `json:"state"`
	LastAccess time.Time `json:"last_access"`
}

// Manager owns the bounded pool of ffmpeg transcode sessions. One instance is
// constructed at daemon startup and passed to the stream server by reference.
type Manager struct {
	root        string
	ffmpeg      string
	maxSessions int
	segmentSecs int
	idle        time.Duration
	sweepEvery  time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	active   int
}

// NewManager builds a manager from daemon configuration.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	return &Manager{
		root:        cfg.HLSCacheDir(),
		ffmpeg:      cfg.FFmpegBinary(),
		maxSessions: cfg.Streaming.MaxConcurrentTranscodes,
		segmentSecs: cfg.Streaming.SegmentSeconds,
		idle:        cfg.SessionIdle(),
		sweepEvery:  cfg.SweepInterval(),
		logger:      logging.NewComponentLogger(logger, "hls"),
		sessions:    make(map[string]*session),
	}
}

// EnsureSession returns the live session for an id, creating one when none
// exists. Admission check and slot claim happen under one lock hold, so
// concurrent requests can never exceed the session cap. At capacity the
// request fails immediately; queuing would let waiters accumulate without
// bound.
func (m *Manager) EnsureSession(ctx context.Context, sessionID, sourcePath string) (SessionInfo, error) {
	m.mu.Lock()
	if existing, ok := m.sessions[sessionID]; ok {
		switch existing.state {
		case StateStarting, StateRunning:
			existing.lastAccess = time.Now()
			info := snapshot(existing)
			m.mu.Unlock()
			return info, nil
		default:
			// A stopped or crashed session is replaced below.
			delete(m.sessions, sessionID)
		}
	}
	if m.active >= m.maxSessions {
		m.mu.Unlock()
		return SessionInfo{}, services.Wrap(services.ErrServerBusy, "hls", "ensure",
			fmt.Sprintf("all %d transcode slots in use", m.maxSessions), nil)
	}
	sess := &session{
		id:         sessionID,
		sourcePath: sourcePath,
		cacheDir:   filepath.Join(m.root, sessionID),
		state:      StateStarting,
		lastAccess: time.Now(),
		holdsSlot:  true,
	}
	m.active++
	m.sessions[sessionID] = sess
	m.mu.Unlock()

	if err := m.spawn(ctx, sess); err != nil {
		m.mu.Lock()
		m.releaseLocked(sess)
		delete(m.sessions, sessionID)
		m.mu.Unlock()
		return SessionInfo{}, err
	}

	m.logger.Info("transcode session started",
		logging.String(logging.FieldSessionID, sessionID),
		logging.String("source", sourcePath))

	m.mu.Lock()
	info := snapshot(sess)
	m.mu.Unlock()
	return info, nil
}

func (m *Manager) spawn(ctx context.Context, sess *session) error {
	if err := os.MkdirAll(sess.cacheDir, 0o755); err != nil {
		return services.Wrap(services.ErrTranscodeProcess, "hls", "spawn", "create session cache dir", err)
	}
	if err := writeMasterPlaylist(sess.cacheDir); err != nil {
		return services.Wrap(services.ErrTranscodeProcess, "hls", "spawn", "write master playlist", err)
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", sess.sourcePath,
		"-codec:v", "libx264", "-preset", "veryfast",
		"-codec:a", "aac",
		"-f", "hls",
		"-hls_time", strconv.Itoa(m.segmentSecs),
		"-hls_playlist_type", "event",
		"-hls_segment_filename", filepath.Join(sess.cacheDir, "seg_%05d.ts"),
		filepath.Join(sess.cacheDir, VariantPlaylist),
	}

	// The process outlives the admission request; lifetime belongs to the
	// sweep and to StopSession.
	cmd := commandContext(context.Background(), m.ffmpeg, args...) //nolint:gosec
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrTranscodeProcess, "hls", "spawn",
			fmt.Sprintf("start %s", m.ffmpeg), err)
	}

	m.mu.Lock()
	sess.cmd = cmd
	m.mu.Unlock()

	go m.reap(sess)
	go m.watchReadiness(sess)
	return nil
}

// reap observes process exit and frees the slot for states the sweep has not
// already settled.
func (m *Manager) reap(sess *session) {
	err := sess.cmd.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	switch sess.state {
	case StateStopping, StateStopped:
		sess.state = StateStopped
	case StateRunning:
		// An encoder that finished the whole source exits cleanly.
		if err != nil {
			sess.state = StateCrashed
		} else {
			sess.state = StateStopped
		}
	default:
		sess.state = StateCrashed
	}
	m.releaseLocked(sess)

	if sess.state == StateCrashed {
		m.logger.Error("transcode process failed",
			logging.String(logging.FieldSessionID, sess.id),
			logging.Error(err))
	}
}

// watchReadiness flips the session to Running once the encoder emits its
// variant playlist.
func (m *Manager) watchReadiness(sess *session) {
	playlist := filepath.Join(sess.cacheDir, VariantPlaylist)
	for {
		m.mu.Lock()
		state := sess.state
		m.mu.Unlock()
		if state != StateStarting {
			return
		}
		if _, err := os.Stat(playlist); err == nil {
			m.mu.Lock()
			if sess.state == StateStarting {
				sess.state = StateRunning
			}
			m.mu.Unlock()
			m.logger.Info("transcode session ready",
				logging.String(logging.FieldSessionID, sess.id))
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// OpenFile resolves a playlist or segment inside a session's cache dir and
// bumps the session's access time. A file the encoder has not produced yet is
// a retryable not-ready condition while the session is starting or running.
func (m *Manager) OpenFile(sessionID, name string) (string, error) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return "", services.Wrap(services.ErrNotFound, "hls", "open",
			fmt.Sprintf("no session %s", sessionID), nil)
	}
	sess.lastAccess = time.Now()
	state := sess.state
	dir := sess.cacheDir
	m.mu.Unlock()

	clean := filepath.Base(name)
	path := filepath.Join(dir, clean)
	if _, err := os.Stat(path); err != nil {
		if state == StateStarting || state == StateRunning {
			return "", services.Wrap(services.ErrNotReady, "hls", "open",
				fmt.Sprintf("%s not produced yet", clean), nil)
		}
		return "", services.Wrap(services.ErrNotFound, "hls", "open",
			fmt.Sprintf("%s has no %s", sessionID, clean), nil)
	}
	return path, nil
}

// StopSession kills a session's encoder and removes its output. Unknown ids
// are reported as not found.
func (m *Manager) StopSession(sessionID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return services.Wrap(services.ErrNotFound, "hls", "stop",
			fmt.Sprintf("no session %s", sessionID), nil)
	}
	m.evictLocked(sess)
	m.mu.Unlock()
	return nil
}

// Sessions snapshots every tracked session for status output.
func (m *Manager) Sessions() []SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	infos := make([]SessionInfo, 0, len(m.sessions))
	for _, sess := range m.sessions {
		infos = append(infos, snapshot(sess))
	}
	return infos
}

// ActiveCount reports sessions currently holding a transcode slot.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Run drives the idle sweep until the context is cancelled, then stops every
// remaining session.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.StopAll()
			return
		case <-ticker.C:
			m.sweep(time.Now())
		}
	}
}

// StopAll evicts every session. Used on shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sess := range m.sessions {
		m.evictLocked(sess)
	}
}

func (m *Manager) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sess := range m.sessions {
		if now.Sub(sess.lastAccess) >= m.idle {
			m.logger.Info("evicting idle transcode session",
				logging.String(logging.FieldSessionID, sess.id),
				logging.Duration("idle", now.Sub(sess.lastAccess)))
			m.evictLocked(sess)
		}
	}
}

// evictLocked kills the process, removes output, and frees the slot. The slot
// is released under the same lock hold, so a subsequent admission check can
// never observe an evicted session still counted as active.
func (m *Manager) evictLocked(sess *session) {
	if sess.state == StateStarting || sess.state == StateRunning {
		sess.state = StateStopping
	}
	kill(sess.cmd)
	m.releaseLocked(sess)
	delete(m.sessions, sess.id)
	_ = os.RemoveAll(sess.cacheDir)
	if sess.state == StateStopping {
		sess.state = StateStopped
	}
}

func (m *Manager) releaseLocked(sess *session) {
	if sess.holdsSlot {
		sess.holdsSlot = false
		m.active--
	}
}

// kill is robust to processes that already exited or never started.
func kill(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}

func snapshot(sess *session) SessionInfo {
	return SessionInfo{
		ID:         sess.id,
		SourcePath: sess.sourcePath,
		State:      sess.state,
		LastAccess: sess.lastAccess,
	}
}

func writeMasterPlaylist(dir string) error {
	content := "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=2000000\n" + VariantPlaylist + "\n"
	return os.WriteFile(filepath.Join(dir, MasterPlaylist), []byte(content), 0o644)
}
