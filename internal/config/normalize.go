package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStreaming()
	c.normalizeWorker()
	c.normalizeCloud()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	libraryDirs := make([]string, 0, len(c.Paths.LibraryDirs))
	for _, dir := range c.Paths.LibraryDirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		expanded, expandErr := expandPath(dir)
		if expandErr != nil {
			return fmt.Errorf("paths.library_dirs: %w", expandErr)
		}
		libraryDirs = append(libraryDirs, expanded)
	}
	c.Paths.LibraryDirs = libraryDirs

	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SocketPath) == "" {
		c.Paths.SocketPath = defaultSocketPath
	}
	if c.Paths.SocketPath, err = expandPath(c.Paths.SocketPath); err != nil {
		return fmt.Errorf("paths.socket_path: %w", err)
	}
	c.Paths.MediaBind = strings.TrimSpace(c.Paths.MediaBind)
	if c.Paths.MediaBind == "" {
		c.Paths.MediaBind = defaultMediaBind
	}
	return nil
}

func (c *Config) normalizeStreaming() {
	if c.Streaming.MaxConcurrentTranscodes <= 0 {
		c.Streaming.MaxConcurrentTranscodes = defaultMaxConcurrentTranscodes
	}
	if c.Streaming.SessionIdleSeconds <= 0 {
		c.Streaming.SessionIdleSeconds = defaultSessionIdleSeconds
	}
	if c.Streaming.SweepIntervalSeconds <= 0 {
		c.Streaming.SweepIntervalSeconds = defaultSweepIntervalSeconds
	}
	if c.Streaming.SegmentSeconds <= 0 {
		c.Streaming.SegmentSeconds = defaultSegmentSeconds
	}
	c.Streaming.FFmpegBinary = strings.TrimSpace(c.Streaming.FFmpegBinary)
}

func (c *Config) normalizeWorker() {
	if c.Worker.OperationTimeoutSeconds <= 0 {
		c.Worker.OperationTimeoutSeconds = defaultOperationTimeoutSeconds
	}
	if c.Worker.RestartDelaySeconds < 0 {
		c.Worker.RestartDelaySeconds = 0
	}
}

func (c *Config) normalizeCloud() {
	c.Cloud.BaseURL = strings.TrimRight(strings.TrimSpace(c.Cloud.BaseURL), "/")
	if c.Cloud.PrefetchChunkMB <= 0 {
		c.Cloud.PrefetchChunkMB = defaultPrefetchChunkMB
	}
	if c.Cloud.MinFreeMB < 0 {
		c.Cloud.MinFreeMB = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
