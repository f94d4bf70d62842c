package testsupport

import (
	"path/filepath"
	"testing"

	"mediavault/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LibraryDirs = []string{filepath.Join(base, "library")}
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.MediaBind = "127.0.0.1:0"
	cfg.Paths.SocketPath = filepath.Join(base, "mediavault.sock")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithLibraryDirs overrides the library roots on the test config.
func WithLibraryDirs(dirs ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.LibraryDirs = dirs
	}
}

// WithTranscodeCap overrides the concurrent transcode session limit.
func WithTranscodeCap(limit int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Streaming.MaxConcurrentTranscodes = limit
	}
}
