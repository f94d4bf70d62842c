package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateStreaming(); err != nil {
		return err
	}
	if err := c.validateCloud(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if len(c.Paths.LibraryDirs) == 0 {
		return errors.New("paths.library_dirs must name at least one directory")
	}
	if c.Paths.CacheDir == "" {
		return errors.New("paths.cache_dir must be set")
	}
	return nil
}

func (c *Config) validateStreaming() error {
	if c.Streaming.MaxConcurrentTranscodes > 32 {
		return fmt.Errorf("streaming.max_concurrent_transcodes %d exceeds the supported maximum of 32", c.Streaming.MaxConcurrentTranscodes)
	}
	if c.Streaming.SweepIntervalSeconds > c.Streaming.SessionIdleSeconds {
		return errors.New("streaming.sweep_interval_seconds must not exceed streaming.session_idle_seconds")
	}
	return nil
}

func (c *Config) validateCloud() error {
	if c.Cloud.BaseURL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Cloud.BaseURL)
	if err != nil {
		return fmt.Errorf("cloud.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("cloud.base_url: unsupported scheme %q", parsed.Scheme)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
}
