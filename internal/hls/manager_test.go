package hls

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"mediavault/internal/logging"
	"mediavault/internal/services"
	"mediavault/internal/testsupport"
)

func setEncoderHelper(t *testing.T, mode string) *int {
	t.Helper()
	spawns := 0
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		spawns++
		helperArgs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], helperArgs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("HLS_HELPER_MODE=%s", mode))
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
	return &spawns
}

func newTestManager(t *testing.T, limit int) *Manager {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithTranscodeCap(limit))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	m := NewManager(cfg, logging.NewNop())
	m.idle = 50 * time.Millisecond
	t.Cleanup(m.StopAll)
	return m
}

func waitForState(t *testing.T, m *Manager, sessionID string, want State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		for _, info := range m.Sessions() {
			if info.ID == sessionID && info.State == want {
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("session %s never reached state %s (have %+v)", sessionID, want, m.Sessions())
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestEnsureSessionReusesLiveSession(t *testing.T) {
	spawns := setEncoderHelper(t, "encode")
	m := newTestManager(t, 2)
	ctx := context.Background()

	first, err := m.EnsureSession(ctx, "sess-a", "/media/a.mp4")
	if err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}
	second, err := m.EnsureSession(ctx, "sess-a", "/media/a.mp4")
	if err != nil {
		t.Fatalf("repeat EnsureSession failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same session, got %q and %q", first.ID, second.ID)
	}
	if *spawns != 1 {
		t.Fatalf("expected a single encoder spawn, got %d", *spawns)
	}
}

func TestAdmissionCapRejectsWithoutSpawning(t *testing.T) {
	spawns := setEncoderHelper(t, "encode")
	m := newTestManager(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := m.EnsureSession(ctx, fmt.Sprintf("sess-%d", i), "/media/a.mp4"); err != nil {
			t.Fatalf("EnsureSession %d failed: %v", i, err)
		}
	}

	_, err := m.EnsureSession(ctx, "sess-over", "/media/a.mp4")
	if !errors.Is(err, services.ErrServerBusy) {
		t.Fatalf("expected busy error at cap, got %v", err)
	}
	if *spawns != 2 {
		t.Fatalf("expected exactly 2 spawns, got %d", *spawns)
	}
	if m.ActiveCount() != 2 {
		t.Fatalf("expected 2 active slots, got %d", m.ActiveCount())
	}
}

func TestSessionRunsWhenPlaylistAppears(t *testing.T) {
	setEncoderHelper(t, "encode")
	m := newTestManager(t, 1)

	info, err := m.EnsureSession(context.Background(), "sess-a", "/media/a.mp4")
	if err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}
	if info.State != StateStarting {
		t.Fatalf("expected new session to be starting, got %s", info.State)
	}
	waitForState(t, m, "sess-a", StateRunning)
}

func TestOpenFileNotReadyThenReady(t *testing.T) {
	setEncoderHelper(t, "encode")
	m := newTestManager(t, 1)

	if _, err := m.EnsureSession(context.Background(), "sess-a", "/media/a.mp4"); err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}

	if _, err := m.OpenFile("sess-a", "seg_00042.ts"); !errors.Is(err, services.ErrNotReady) {
		t.Fatalf("expected not-ready for unproduced segment, got %v", err)
	}

	waitForState(t, m, "sess-a", StateRunning)
	path, err := m.OpenFile("sess-a", VariantPlaylist)
	if err != nil {
		t.Fatalf("OpenFile playlist failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("resolved playlist path not readable: %v", err)
	}

	master, err := m.OpenFile("sess-a", MasterPlaylist)
	if err != nil {
		t.Fatalf("OpenFile master failed: %v", err)
	}
	if filepath.Base(master) != MasterPlaylist {
		t.Fatalf("unexpected master path %q", master)
	}
}

func TestOpenFileUnknownSession(t *testing.T) {
	m := newTestManager(t, 1)
	if _, err := m.OpenFile("ghost", VariantPlaylist); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestStopSessionFreesSlotAndOutput(t *testing.T) {
	setEncoderHelper(t, "encode")
	m := newTestManager(t, 1)
	ctx := context.Background()

	if _, err := m.EnsureSession(ctx, "sess-a", "/media/a.mp4"); err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}
	if _, err := m.EnsureSession(ctx, "sess-b", "/media/b.mp4"); !errors.Is(err, services.ErrServerBusy) {
		t.Fatalf("expected busy at cap, got %v", err)
	}

	dir := filepath.Join(m.root, "sess-a")
	if err := m.StopSession("sess-a"); err != nil {
		t.Fatalf("StopSession failed: %v", err)
	}
	if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected session output removed, stat err=%v", err)
	}
	if err := m.StopSession("sess-a"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected stop of stopped session to report not-found, got %v", err)
	}

	if _, err := m.EnsureSession(ctx, "sess-b", "/media/b.mp4"); err != nil {
		t.Fatalf("expected slot to be free after stop, got %v", err)
	}
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	setEncoderHelper(t, "encode")
	m := newTestManager(t, 1)

	if _, err := m.EnsureSession(context.Background(), "sess-a", "/media/a.mp4"); err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}

	time.Sleep(80 * time.Millisecond)
	m.sweep(time.Now())

	if m.ActiveCount() != 0 {
		t.Fatalf("expected no active slots after sweep, got %d", m.ActiveCount())
	}
	if len(m.Sessions()) != 0 {
		t.Fatalf("expected no tracked sessions after sweep, got %+v", m.Sessions())
	}
}

func TestCrashedEncoderReleasesSlot(t *testing.T) {
	setEncoderHelper(t, "failstart")
	m := newTestManager(t, 1)
	ctx := context.Background()

	if _, err := m.EnsureSession(ctx, "sess-a", "/media/a.mp4"); err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}
	waitForState(t, m, "sess-a", StateCrashed)
	if m.ActiveCount() != 0 {
		t.Fatalf("expected crashed session to free its slot, got %d active", m.ActiveCount())
	}

	if _, err := m.EnsureSession(ctx, "sess-b", "/media/b.mp4"); err != nil {
		t.Fatalf("expected admission after crash freed the slot, got %v", err)
	}
}

func TestSessionIDForSourceIsStable(t *testing.T) {
	a := SessionIDForSource("/media/a.mp4")
	if a != SessionIDForSource("/media/a.mp4") {
		t.Fatal("expected stable id for same source")
	}
	if a == SessionIDForSource("/media/b.mp4") {
		t.Fatal("expected distinct ids for distinct sources")
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}

	switch os.Getenv("HLS_HELPER_MODE") {
	case "encode":
		playlist := args[len(args)-1]
		time.Sleep(150 * time.Millisecond)
		_ = os.WriteFile(playlist, []byte("#EXTM3U\n#EXT-X-TARGETDURATION:4\n"), 0o644)
		time.Sleep(time.Hour)
	case "failstart":
		os.Exit(1)
	}
	os.Exit(0)
}
