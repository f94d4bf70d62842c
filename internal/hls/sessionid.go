package hls

import "github.com/google/uuid"

// SessionIDForSource derives a stable session id from a source path, so
// repeated playback requests for the same file reuse one session.
func SessionIDForSource(sourcePath string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(sourcePath)).String()
}
