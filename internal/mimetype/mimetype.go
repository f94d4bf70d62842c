// Package mimetype maps media file extensions to MIME types.
package mimetype

import (
	"path/filepath"
	"strings"
)

const fallback = "application/octet-stream"

// Video extensions use an explicit table because several containers do not
// follow the image/<ext> naming pattern.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".ogg":  "video/ogg",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
}

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".svg":  "image/svg+xml",
	".tiff": "image/tiff",
	".heic": "image/heic",
	".avif": "image/avif",
}

// ForPath returns the MIME type for a file path based on its extension,
// case-insensitively. Unknown extensions and paths without an extension map
// to application/octet-stream.
func ForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return fallback
	}
	if mime, ok := videoTypes[ext]; ok {
		return mime
	}
	if mime, ok := imageTypes[ext]; ok {
		return mime
	}
	return fallback
}

// IsVideo reports whether the path carries a recognized video extension.
func IsVideo(path string) bool {
	_, ok := videoTypes[strings.ToLower(filepath.Ext(path))]
	return ok
}

// IsImage reports whether the path carries a recognized image extension.
func IsImage(path string) bool {
	_, ok := imageTypes[strings.ToLower(filepath.Ext(path))]
	return ok
}
