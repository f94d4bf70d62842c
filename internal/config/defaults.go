package config

const (
	defaultCacheDir                = "~/.local/share/mediavault/cache"
	defaultLogDir                  = "~/.local/share/mediavault/logs"
	defaultMediaBind               = "127.0.0.1:8480"
	defaultSocketPath              = "~/.local/share/mediavault/mediavaultd.sock"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultMaxConcurrentTranscodes = 3
	defaultSessionIdleSeconds      = 300
	defaultSweepIntervalSeconds    = 30
	defaultSegmentSeconds          = 4
	defaultOperationTimeoutSeconds = 30
	defaultRestartDelaySeconds     = 5
	defaultPrefetchChunkMB         = 8
	defaultMinFreeMB               = 512
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDirs: []string{"~/media"},
			CacheDir:    defaultCacheDir,
			LogDir:      defaultLogDir,
			MediaBind:   defaultMediaBind,
			SocketPath:  defaultSocketPath,
		},
		Streaming: Streaming{
			MaxConcurrentTranscodes: defaultMaxConcurrentTranscodes,
			SessionIdleSeconds:      defaultSessionIdleSeconds,
			SweepIntervalSeconds:    defaultSweepIntervalSeconds,
			SegmentSeconds:          defaultSegmentSeconds,
		},
		Worker: Worker{
			OperationTimeoutSeconds: defaultOperationTimeoutSeconds,
			RestartDelaySeconds:     defaultRestartDelaySeconds,
		},
		Cloud: Cloud{
			PrefetchChunkMB: defaultPrefetchChunkMB,
			MinFreeMB:       defaultMinFreeMB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
