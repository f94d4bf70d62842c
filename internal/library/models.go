package library

import "time"

// Kind partitions indexed files by how the stream server serves them.
type Kind string

const (
	KindVideo Kind = "video"
	KindImage Kind = "image"
	KindOther Kind = "other"
)

// File is one indexed media file.
type File struct {
	ID           int64      `json:"id"`
	Path         string     `json:"path"`
	Title        string     `json:"title"`
	Kind         Kind       `json:"kind"`
	SizeBytes    int64      `json:"size_bytes"`
	ModTime      time.Time  `json:"mod_time"`
	CloudID      string     `json:"cloud_id,omitempty"`
	ViewCount    int64      `json:"view_count"`
	LastViewedAt *time.Time `json:"last_viewed_at,omitempty"`
	FirstSeenAt  time.Time  `json:"first_seen_at"`
	LastSeenAt   time.Time  `json:"last_seen_at"`
}

// Stats aggregates index contents for status output.
type Stats struct {
	TotalFiles int64 `json:"total_files"`
	VideoFiles int64 `json:"video_files"`
	ImageFiles int64 `json:"image_files"`
	OtherFiles int64 `json:"other_files"`
	TotalBytes int64 `json:"total_bytes"`
	TotalViews int64 `json:"total_views"`
}

// ScanSummary reports one library scan pass.
type ScanSummary struct {
	Scanned int64 `json:"scanned"`
	Added   int64 `json:"added"`
	Updated int64 `json:"updated"`
	Removed int64 `json:"removed"`
}

// DatabaseHealth carries diagnostic information about the index database.
type DatabaseHealth struct {
	DBPath         string `json:"db_path"`
	DatabaseExists bool   `json:"database_exists"`
	SizeBytes      int64  `json:"size_bytes"`
	TotalFiles     int64  `json:"total_files"`
}
