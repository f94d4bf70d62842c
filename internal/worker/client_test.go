package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mediavault/internal/logging"
	"mediavault/internal/services"
)

func setWorkerHelper(t *testing.T, mode string, extraEnv ...string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("WORKER_HELPER_MODE=%s", mode))
		cmd.Env = append(cmd.Env, extraEnv...)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func startClient(t *testing.T, opts Options) *Client {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	client := NewClient(opts)
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	t.Cleanup(client.Terminate)
	return client
}

func TestClientCallRoundTrip(t *testing.T) {
	setWorkerHelper(t, "serve")
	client := startClient(t, Options{Kind: "library"})

	data, err := client.Call(context.Background(), "echo", map[string]string{"path": "/media/clip.mp4"})
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	var body map[string]string
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("decode reply data: %v", err)
	}
	if body["path"] != "/media/clip.mp4" {
		t.Fatalf("expected payload to round-trip, got %v", body)
	}
}

func TestClientConcurrentCallsCorrelate(t *testing.T) {
	setWorkerHelper(t, "serve")
	client := startClient(t, Options{Kind: "library"})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			want := fmt.Sprintf("file-%d", n)
			data, err := client.Call(context.Background(), "echo", map[string]string{"name": want})
			if err != nil {
				t.Errorf("call %d returned error: %v", n, err)
				return
			}
			var body map[string]string
			if err := json.Unmarshal(data, &body); err != nil {
				t.Errorf("call %d decode: %v", n, err)
				return
			}
			if body["name"] != want {
				t.Errorf("call %d got wrong reply %v, want %q", n, body, want)
			}
		}(i)
	}
	wg.Wait()
}

func TestClientWorkerErrorPropagates(t *testing.T) {
	setWorkerHelper(t, "serve")
	client := startClient(t, Options{Kind: "library"})

	_, err := client.Call(context.Background(), "fail", nil)
	if err == nil {
		t.Fatal("expected worker-reported error")
	}
	if err.Error() != "file missing from index" {
		t.Fatalf("expected worker error text, got %q", err.Error())
	}
}

func TestClientCallTimeout(t *testing.T) {
	setWorkerHelper(t, "serve")
	client := startClient(t, Options{Kind: "library", OperationTimeout: 150 * time.Millisecond})

	_, err := client.Call(context.Background(), "sleep", nil)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}

	// The late reply for the timed-out id must not leak into the next call.
	data, err := client.Call(context.Background(), "echo", map[string]string{"name": "after"})
	if err != nil {
		t.Fatalf("call after timeout returned error: %v", err)
	}
	var body map[string]string
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("decode reply data: %v", err)
	}
	if body["name"] != "after" {
		t.Fatalf("expected fresh reply, got %v", body)
	}
}

func TestClientCrashRejectsAllPending(t *testing.T) {
	setWorkerHelper(t, "abort")
	client := startClient(t, Options{Kind: "library", OperationTimeout: 10 * time.Second})

	const calls = 3
	errs := make(chan error, calls)
	for i := 0; i < calls; i++ {
		go func() {
			_, err := client.Call(context.Background(), "hang", nil)
			errs <- err
		}()
	}

	for i := 0; i < calls; i++ {
		select {
		case err := <-errs:
			if !errors.Is(err, services.ErrWorkerCrashed) {
				t.Fatalf("expected crash error, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("pending call was not rejected after worker crash")
		}
	}

	if _, err := client.Call(context.Background(), "echo", nil); !errors.Is(err, services.ErrWorkerNotInitialized) {
		t.Fatalf("expected not-initialized error after crash without restart, got %v", err)
	}
}

func TestClientRestartsAfterCrash(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "crashed")
	setWorkerHelper(t, "abort-once", "WORKER_HELPER_CRASH_MARKER="+marker)
	client := startClient(t, Options{
		Kind:             "library",
		OperationTimeout: 5 * time.Second,
		RestartDelay:     100 * time.Millisecond,
	})

	_, err := client.Call(context.Background(), "hang", nil)
	if !errors.Is(err, services.ErrWorkerCrashed) {
		t.Fatalf("expected crash error, got %v", err)
	}

	// Restart is time-delayed and never replays the failed call.
	deadline := time.Now().Add(5 * time.Second)
	for {
		data, err := client.Call(context.Background(), "echo", map[string]string{"name": "revived"})
		if err == nil {
			var body map[string]string
			if err := json.Unmarshal(data, &body); err != nil {
				t.Fatalf("decode reply data: %v", err)
			}
			if body["name"] != "revived" {
				t.Fatalf("unexpected reply %v", body)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("worker never came back after crash: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestClientConcurrentStartSpawnsOnce(t *testing.T) {
	setWorkerHelper(t, "serve")
	var spawns atomic.Int32
	inner := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		spawns.Add(1)
		return inner(ctx, name, args...)
	}
	t.Cleanup(func() { commandContext = inner })

	client := NewClient(Options{Kind: "library", Logger: logging.NewNop()})
	t.Cleanup(client.Terminate)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- client.Start(context.Background())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
	}
	if got := spawns.Load(); got != 1 {
		t.Fatalf("expected exactly one spawned worker, got %d", got)
	}
}

func TestClientStartInitFailure(t *testing.T) {
	setWorkerHelper(t, "badinit")
	client := NewClient(Options{Kind: "library", Logger: logging.NewNop(), OperationTimeout: 2 * time.Second})
	t.Cleanup(client.Terminate)

	err := client.Start(context.Background())
	if !errors.Is(err, services.ErrWorkerNotInitialized) {
		t.Fatalf("expected init failure, got %v", err)
	}
}

func TestClientCallBeforeStart(t *testing.T) {
	client := NewClient(Options{Kind: "library", Logger: logging.NewNop()})

	_, err := client.Call(context.Background(), "echo", nil)
	if !errors.Is(err, services.ErrWorkerNotInitialized) {
		t.Fatalf("expected not-initialized error, got %v", err)
	}
}

func TestClientTerminateIdempotent(t *testing.T) {
	setWorkerHelper(t, "serve")
	client := startClient(t, Options{Kind: "library"})

	client.Terminate()
	client.Terminate()

	if _, err := client.Call(context.Background(), "echo", nil); !errors.Is(err, services.ErrWorkerNotInitialized) {
		t.Fatalf("expected not-initialized error after terminate, got %v", err)
	}
	if err := client.Start(context.Background()); !errors.Is(err, services.ErrWorkerNotInitialized) {
		t.Fatalf("expected terminated client to refuse restart, got %v", err)
	}
}

func TestClientRejectsUnencodablePayload(t *testing.T) {
	client := NewClient(Options{Kind: "library", Logger: logging.NewNop()})

	_, err := client.Call(context.Background(), "echo", func() {})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unencodable payload, got %v", err)
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	mode := os.Getenv("WORKER_HELPER_MODE")
	srv := NewServer(logging.NewNop(), nil, nil)
	srv.Register("echo", func(_ context.Context, payload json.RawMessage) (any, error) {
		if len(payload) == 0 {
			return map[string]string{}, nil
		}
		var body map[string]string
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, err
		}
		return body, nil
	})
	srv.Register("fail", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("file missing from index")
	})
	srv.Register("sleep", func(context.Context, json.RawMessage) (any, error) {
		time.Sleep(time.Second)
		return "done", nil
	})
	srv.Register("hang", func(context.Context, json.RawMessage) (any, error) {
		select {}
	})

	switch mode {
	case "serve":
	case "abort":
		time.AfterFunc(300*time.Millisecond, func() { os.Exit(1) })
	case "abort-once":
		// Only the first generation dies; restarted workers serve normally.
		marker := os.Getenv("WORKER_HELPER_CRASH_MARKER")
		if _, err := os.Stat(marker); err != nil {
			_ = os.WriteFile(marker, nil, 0o644)
			time.AfterFunc(300*time.Millisecond, func() { os.Exit(1) })
		}
	case "badinit":
		srv = NewServer(logging.NewNop(), func(context.Context) error {
			return errors.New("cache directory unavailable")
		}, nil)
	default:
		os.Exit(0)
	}

	_ = srv.Serve(context.Background(), os.Stdin, os.Stdout)
	os.Exit(0)
}
