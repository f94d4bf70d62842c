package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	LibraryDirs []string `toml:"library_dirs"`
	CacheDir    string   `toml:"cache_dir"`
	LogDir      string   `toml:"log_dir"`
	MediaBind   string   `toml:"media_bind"`
	SocketPath  string   `toml:"socket_path"`
}

// Streaming contains configuration for HLS transcoding sessions.
type Streaming struct {
	MaxConcurrentTranscodes int    `toml:"max_concurrent_transcodes"`
	SessionIdleSeconds      int    `toml:"session_idle_seconds"`
	SweepIntervalSeconds    int    `toml:"sweep_interval_seconds"`
	SegmentSeconds          int    `toml:"segment_seconds"`
	FFmpegBinary            string `toml:"ffmpeg_binary"`
}

// Worker contains configuration for the library worker process boundary.
type Worker struct {
	OperationTimeoutSeconds int `toml:"operation_timeout_seconds"`
	RestartDelaySeconds     int `toml:"restart_delay_seconds"`
}

// Cloud contains configuration for remotely hosted files and their local
// partial copies.
type Cloud struct {
	BaseURL         string `toml:"base_url"`
	PrefetchChunkMB int    `toml:"prefetch_chunk_mb"`
	MinFreeMB       int    `toml:"min_free_mb"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for mediavault.
//
// Configuration sections by subsystem:
//   - Paths: library roots, cache directory, bind address, control socket
//   - Streaming: transcode concurrency cap, idle eviction, ffmpeg settings
//   - Worker: RPC operation timeout and auto-restart policy
//   - Cloud: remote file endpoint and prefetch policy
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Streaming Streaming `toml:"streaming"`
	Worker    Worker    `toml:"worker"`
	Cloud     Cloud     `toml:"cloud"`
	Logging   Logging   `toml:"logging"`

	// SourcePath records where this configuration was loaded from so the
	// daemon can hand the same file to spawned worker processes. Empty for
	// configs built in memory.
	SourcePath string `toml:"-"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mediavault/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	cfg.SourcePath = resolvedPath
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/mediavault/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediavault.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// Library roots are created on a best-effort basis so the daemon can run while
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CacheDir, c.Paths.LogDir, c.HLSCacheDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, dir := range c.Paths.LibraryDirs {
		if strings.TrimSpace(dir) != "" {
			// Best-effort to avoid failing startup when storage is offline.
			_ = os.MkdirAll(dir, 0o755)
		}
	}
	return nil
}

// HLSCacheDir returns the root directory for per-session transcode output.
func (c *Config) HLSCacheDir() string {
	return filepath.Join(c.Paths.CacheDir, "hls")
}

// RemoteCacheDir returns the directory holding partial copies of cloud files.
func (c *Config) RemoteCacheDir() string {
	return filepath.Join(c.Paths.CacheDir, "remote")
}

// DatabasePath returns the location of the media index database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.CacheDir, "library.db")
}

// SessionIdle returns how long an HLS session may go unaccessed before the
// sweeper evicts it.
func (c *Config) SessionIdle() time.Duration {
	return time.Duration(c.Streaming.SessionIdleSeconds) * time.Second
}

// SweepInterval returns how often the idle sweeper runs.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Streaming.SweepIntervalSeconds) * time.Second
}

// OperationTimeout returns the per-call deadline for worker RPC.
func (w Worker) OperationTimeout() time.Duration {
	return time.Duration(w.OperationTimeoutSeconds) * time.Second
}

// RestartDelay returns the worker respawn delay; zero disables auto-restart.
func (w Worker) RestartDelay() time.Duration {
	return time.Duration(w.RestartDelaySeconds) * time.Second
}

// PrefetchChunkBytes returns the size of one background prefetch append.
func (cl Cloud) PrefetchChunkBytes() int64 {
	return int64(cl.PrefetchChunkMB) * 1024 * 1024
}

// MinFreeBytes returns the cache-disk free space floor below which
// prefetching pauses.
func (cl Cloud) MinFreeBytes() int64 {
	return int64(cl.MinFreeMB) * 1024 * 1024
}

// FFmpegBinary returns the ffmpeg executable name used for HLS transcoding.
func (c *Config) FFmpegBinary() string {
	if binary := strings.TrimSpace(c.Streaming.FFmpegBinary); binary != "" {
		return binary
	}
	return "ffmpeg"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
