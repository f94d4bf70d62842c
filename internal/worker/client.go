package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"log/slog"

	"mediavault/internal/logging"
	"mediavault/internal/services"
)

var commandContext = exec.CommandContext

// Options configures a worker client.
type Options struct {
	// Kind selects the dispatcher the spawned process runs, passed as
	// "worker <kind>" argv to the current executable.
	Kind string
	// OperationTimeout bounds each call. Zero selects the 30s default.
	OperationTimeout time.Duration
	// RestartDelay respawns a crashed worker after this delay. Zero disables
	// auto-restart. Restart never replays failed calls.
	RestartDelay time.Duration
	// Executable overrides the spawned binary. Empty selects os.Executable.
	Executable string
	// ExtraArgs are appended after the kind so the parent can forward
	// flags, such as the config file path, to the spawned process.
	ExtraArgs []string
	Logger    *slog.Logger
}

const defaultOperationTimeout = 30 * time.Second

type callResult struct {
	data json.RawMessage
	err  error
}

// Client turns a worker process into an async function-call boundary. Calls
// are correlated by monotonically increasing ids; replies may arrive in any
// order relative to concurrently in-flight calls.
type Client struct {
	opts   Options
	logger *slog.Logger

	// startMu serializes Start end to end, so two concurrent Start calls
	// cannot each spawn a process. The loser of the race sees c.proc set
	// and returns without spawning.
	startMu sync.Mutex

	mu         sync.Mutex
	proc       *process
	pending    map[uint64]chan callResult
	nextID     uint64
	terminated bool
}

type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	writeMu sync.Mutex
	done    chan struct{}
}

// NewClient constructs an unstarted client. Call Start before issuing calls.
func NewClient(opts Options) *Client {
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = defaultOperationTimeout
	}
	return &Client{
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "worker-client"),
		pending: make(map[uint64]chan callResult),
	}
}

// Start spawns the worker process and performs the init handshake. It returns
// only after the worker acknowledges readiness or the handshake fails.
func (c *Client) Start(ctx context.Context) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return services.Wrap(services.ErrWorkerNotInitialized, "worker", "start", "client already terminated", nil)
	}
	if c.proc != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	// The process lifetime is owned by Terminate, not by the handshake
	// context, so a short Start deadline cannot reap a healthy worker.
	if err := c.spawn(context.Background()); err != nil {
		return err
	}

	if _, err := c.Call(ctx, TypeInit, nil); err != nil {
		c.Terminate()
		return services.Wrap(services.ErrWorkerNotInitialized, "worker", "init", fmt.Sprintf("worker %q failed init handshake", c.opts.Kind), err)
	}
	c.logger.Info("worker ready", logging.String(logging.FieldWorker, c.opts.Kind))
	return nil
}

func (c *Client) spawn(ctx context.Context) error {
	executable := c.opts.Executable
	if executable == "" {
		path, err := os.Executable()
		if err != nil {
			return services.Wrap(services.ErrWorkerNotInitialized, "worker", "spawn", "resolve executable", err)
		}
		executable = path
	}

	args := append([]string{"worker", c.opts.Kind}, c.opts.ExtraArgs...)
	cmd := commandContext(ctx, executable, args...) //nolint:gosec
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return services.Wrap(services.ErrWorkerNotInitialized, "worker", "spawn", "stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrWorkerNotInitialized, "worker", "spawn", "stdout pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrWorkerNotInitialized, "worker", "spawn", fmt.Sprintf("start worker %q", c.opts.Kind), err)
	}

	proc := &process{cmd: cmd, stdin: stdin, stdout: stdout, done: make(chan struct{})}

	c.mu.Lock()
	c.proc = proc
	c.mu.Unlock()

	go c.readLoop(proc)
	return nil
}

// Call posts a typed request and waits for the matching reply, the configured
// operation timeout, or context cancellation, whichever settles first.
// Serialization failures reject immediately without waiting.
func (c *Client) Call(ctx context.Context, msgType string, payload any) (json.RawMessage, error) {
	var raw json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "worker", "call", fmt.Sprintf("encode %s payload", msgType), err)
		}
		raw = encoded
	}

	c.mu.Lock()
	proc := c.proc
	if proc == nil || c.terminated {
		c.mu.Unlock()
		return nil, services.Wrap(services.ErrWorkerNotInitialized, "worker", "call", fmt.Sprintf("no running worker for %s", msgType), nil)
	}
	c.nextID++
	id := c.nextID
	ch := make(chan callResult, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	if err := proc.write(Request{ID: id, Type: msgType, Payload: raw}); err != nil {
		c.dropPending(id)
		return nil, services.Wrap(services.ErrWorkerCrashed, "worker", "call", fmt.Sprintf("post %s to worker", msgType), err)
	}

	timer := time.NewTimer(c.opts.OperationTimeout)
	defer timer.Stop()

	select {
	case result := <-ch:
		return result.data, result.err
	case <-timer.C:
		// A late reply for this id is silently dropped by the read loop.
		c.dropPending(id)
		return nil, services.Wrap(services.ErrTimeout, "worker", msgType, fmt.Sprintf("no reply within %s", c.opts.OperationTimeout), nil)
	case <-ctx.Done():
		c.dropPending(id)
		return nil, ctx.Err()
	}
}

// Terminate sends a best-effort close message, then forcibly kills the
// process. It is idempotent and safe to call on a never-started client.
func (c *Client) Terminate() {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return
	}
	c.terminated = true
	proc := c.proc
	c.proc = nil
	c.mu.Unlock()

	if proc == nil {
		return
	}
	_ = proc.write(Request{ID: 0, Type: TypeClose})
	select {
	case <-proc.done:
	case <-time.After(2 * time.Second):
	}
	proc.kill()
	c.failPending(services.Wrap(services.ErrWorkerCrashed, "worker", "terminate", "worker terminated", nil))
}

func (c *Client) readLoop(proc *process) {
	scanner := bufio.NewScanner(proc.stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp Response
		if err := json.Unmarshal(line, &resp); err != nil {
			c.logger.Warn("discarding malformed worker reply",
				logging.String(logging.FieldWorker, c.opts.Kind),
				logging.Error(err))
			continue
		}
		c.settle(resp)
	}

	waitErr := proc.cmd.Wait()
	close(proc.done)

	c.mu.Lock()
	crashed := c.proc == proc && !c.terminated
	if crashed {
		c.proc = nil
	}
	terminated := c.terminated
	c.mu.Unlock()

	if !crashed {
		return
	}

	var crashErr error
	if waitErr != nil {
		crashErr = services.Wrap(services.ErrWorkerCrashed, "worker", c.opts.Kind, "worker process failed", waitErr)
	} else {
		crashErr = services.Wrap(services.ErrWorkerCrashed, "worker", c.opts.Kind, "worker exited unexpectedly", nil)
	}
	c.failPending(crashErr)
	c.logger.Error("worker crashed",
		logging.String(logging.FieldWorker, c.opts.Kind),
		logging.String(logging.FieldEventType, "worker_crash"),
		logging.Error(crashErr),
		logging.String(logging.FieldErrorHint, "pending calls were rejected; callers must retry"))

	if c.opts.RestartDelay > 0 && !terminated {
		c.scheduleRestart()
	}
}

func (c *Client) scheduleRestart() {
	delay := c.opts.RestartDelay
	c.logger.Info("scheduling worker restart",
		logging.String(logging.FieldWorker, c.opts.Kind),
		logging.Duration("delay", delay))
	time.AfterFunc(delay, func() {
		c.mu.Lock()
		stale := c.terminated || c.proc != nil
		c.mu.Unlock()
		if stale {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.OperationTimeout)
		defer cancel()
		if err := c.Start(ctx); err != nil {
			c.logger.Error("worker restart failed",
				logging.String(logging.FieldWorker, c.opts.Kind),
				logging.Error(err))
		}
	})
}

// settle resolves exactly the matching pending call; replies for unknown ids
// (already timed out or dropped) are ignored.
func (c *Client) settle(resp Response) {
	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	if resp.Result.Success {
		ch <- callResult{data: resp.Result.Data}
		return
	}
	message := resp.Result.Error
	if message == "" {
		message = "worker reported failure"
	}
	ch <- callResult{err: errors.New(message)}
}

func (c *Client) dropPending(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) failPending(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[uint64]chan callResult)
	c.mu.Unlock()
	for _, ch := range pending {
		ch <- callResult{err: err}
	}
}

func (p *process) write(req Request) error {
	encoded, err := json.Marshal(req)
	if err != nil {
		return err
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if _, err := p.stdin.Write(append(encoded, '\n')); err != nil {
		return err
	}
	return nil
}

// kill is robust to processes that already exited.
func (p *process) kill() {
	_ = p.stdin.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}
