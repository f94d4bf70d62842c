package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediavault/internal/ipc"
)

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
		{3 * 1024 * 1024 * 1024, "3.0 GiB"},
	}
	for _, tc := range cases {
		if got := formatBytes(tc.in); got != tc.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestYesNo(t *testing.T) {
	if yesNo(true) != "yes" || yesNo(false) != "no" {
		t.Fatal("yesNo mapping broken")
	}
}

func TestRenderSessionsTable(t *testing.T) {
	out := renderSessionsTable([]ipc.SessionInfo{
		{ID: "abc", SourcePath: "/media/clip.mp4", State: "running", LastAccess: time.Now()},
	})
	for _, want := range []string{"abc", "/media/clip.mp4", "running"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestConfigInitCommand(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config was not written: %v", err)
	}
	if !strings.Contains(buf.String(), target) {
		t.Fatalf("output should name the target path:\n%s", buf.String())
	}

	// A second run without --overwrite must refuse.
	cmd = newRootCommand()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error when the config already exists")
	}
}

func TestConfigValidateCommand(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`library_dirs = ["` + filepath.Join(base, "library") + `"]`,
		`cache_dir = "` + filepath.Join(base, "cache") + `"`,
		`log_dir = "` + filepath.Join(base, "logs") + `"`,
	}, "\n")
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"config", "validate", "--path", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(buf.String(), "is valid") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestStatusRequiresDaemon(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "missing.sock")

	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"status", "--socket", socket})
	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected an error without a running daemon")
	}
	if !strings.Contains(err.Error(), "connect to daemon") {
		t.Fatalf("unexpected error: %v", err)
	}
}
