package ipc

import (
	"mediavault/internal/deps"
	"mediavault/internal/hls"
	"mediavault/internal/library"
)

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// SessionInfo mirrors the transcode session snapshot for IPC callers.
type SessionInfo = hls.SessionInfo

// MediaFile mirrors the library file record for IPC callers.
type MediaFile = library.File

// DependencyStatus describes availability of an external tool.
type DependencyStatus = deps.Status

// StatusResponse represents combined daemon runtime information.
type StatusResponse struct {
	Running          bool           `json:"running"`
	PID              int            `json:"pid"`
	MediaAddr        string         `json:"media_addr"`
	LockPath         string         `json:"lock_path"`
	DatabasePath     string         `json:"database_path"`
	StartedAt        string         `json:"started_at"`
	ActiveTranscodes int            `json:"active_transcodes"`
	Sessions         []SessionInfo  `json:"sessions"`
	CacheFreeBytes   int64              `json:"cache_free_bytes"`
	Library          *library.Stats     `json:"library,omitempty"`
	Dependencies     []DependencyStatus `json:"dependencies,omitempty"`
}

// ScanRequest triggers a library rescan.
type ScanRequest struct{}

// ScanResponse summarizes one scan pass.
type ScanResponse struct {
	Scanned int64 `json:"scanned"`
	Added   int64 `json:"added"`
	Updated int64 `json:"updated"`
	Removed int64 `json:"removed"`
}

// LibraryListRequest filters the file listing.
type LibraryListRequest struct {
	Kind  string `json:"kind"`
	Limit int    `json:"limit"`
}

// LibraryListResponse contains indexed files.
type LibraryListResponse struct {
	Files []MediaFile `json:"files"`
}

// LibraryStatsRequest fetches index aggregates.
type LibraryStatsRequest struct{}

// LibraryStatsResponse contains index aggregates.
type LibraryStatsResponse struct {
	Stats library.Stats `json:"stats"`
}

// SessionListRequest fetches the transcode session pool.
type SessionListRequest struct{}

// SessionListResponse contains session snapshots.
type SessionListResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// SessionStopRequest evicts one transcode session by id.
type SessionStopRequest struct {
	ID string `json:"id"`
}

// SessionStopResponse indicates stop result.
type SessionStopResponse struct {
	Stopped bool `json:"stopped"`
}

// LogTailRequest reads daemon log lines.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int64 `json:"wait_millis"`
}

// LogTailResponse carries log lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
