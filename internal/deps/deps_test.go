package deps

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckFFmpegAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	binary := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(binary, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	status := CheckFFmpeg(binary)
	if !status.Available {
		t.Fatalf("expected available, detail=%s", status.Detail)
	}
	if status.Command != binary {
		t.Fatalf("Command = %q, want %q", status.Command, binary)
	}
}

func TestCheckFFmpegMissingPath(t *testing.T) {
	status := CheckFFmpeg(filepath.Join(t.TempDir(), "nope"))
	if status.Available {
		t.Fatal("expected unavailable")
	}
	if !strings.Contains(status.Detail, "not found") {
		t.Fatalf("unexpected detail: %s", status.Detail)
	}
}

func TestCheckFFmpegNotExecutable(t *testing.T) {
	dir := t.TempDir()
	binary := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(binary, []byte("data"), 0o644); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	status := CheckFFmpeg(binary)
	if status.Available {
		t.Fatal("expected unavailable")
	}
	if !strings.Contains(status.Detail, "not executable") {
		t.Fatalf("unexpected detail: %s", status.Detail)
	}
}

func TestCheckFFmpegPathLookup(t *testing.T) {
	dir := t.TempDir()
	binary := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(binary, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", dir)

	status := CheckFFmpeg("ffmpeg")
	if !status.Available {
		t.Fatalf("expected available, detail=%s", status.Detail)
	}
	if status.Command != binary {
		t.Fatalf("Command = %q, want %q", status.Command, binary)
	}
}
