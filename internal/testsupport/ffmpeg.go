package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"mediavault/internal/config"
)

// StubFFmpeg points the config at a shell script that mimics an HLS encoder:
// it writes the variant playlist named by its final argument, then stays
// alive until killed.
func StubFFmpeg(t testing.TB, cfg *config.Config) {
	t.Helper()

	script := "#!/bin/sh\n" +
		"for last in \"$@\"; do :; done\n" +
		"printf '#EXTM3U\\n#EXT-X-TARGETDURATION:4\\n' > \"$last\"\n" +
		"sleep 60\n"

	binDir := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, "ffmpeg")
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	cfg.Streaming.FFmpegBinary = target
}
