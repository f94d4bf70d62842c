package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"log/slog"

	"mediavault/internal/logging"
)

// Handler processes one request payload and returns the data for a successful
// reply. A returned error becomes a {success:false, error} result rather than
// propagating out of the serve loop.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Server runs inside the worker process: a single dispatcher keyed by message
// type that replies exactly once per received id.
type Server struct {
	handlers map[string]Handler
	initFn   func(ctx context.Context) error
	closeFn  func()
	logger   *slog.Logger

	writeMu sync.Mutex
	out     io.Writer
}

// NewServer constructs a dispatcher. initFn runs on the init handshake and its
// failure is reported to the client as an init error; closeFn runs once when a
// close message arrives or the input stream ends. Both may be nil.
func NewServer(logger *slog.Logger, initFn func(ctx context.Context) error, closeFn func()) *Server {
	return &Server{
		handlers: make(map[string]Handler),
		initFn:   initFn,
		closeFn:  closeFn,
		logger:   logging.NewComponentLogger(logger, "worker-server"),
	}
}

// Register installs the handler for a message type.
func (s *Server) Register(msgType string, handler Handler) {
	s.handlers[msgType] = handler
}

// Serve reads NDJSON requests from in until EOF, a close message, or context
// cancellation. Handlers run sequentially on the read goroutine; the worker
// owns no shared mutable state with its host process.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.out = out
	defer func() {
		if s.closeFn != nil {
			s.closeFn()
		}
	}()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Warn("discarding malformed request", logging.Error(err))
			continue
		}
		if req.Type == TypeClose {
			s.reply(req.ID, Result{Success: true})
			return nil
		}
		s.dispatch(ctx, req)
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req Request) {
	if req.Type == TypeInit {
		if s.initFn != nil {
			if err := s.initFn(ctx); err != nil {
				s.reply(req.ID, Result{Success: false, Error: err.Error()})
				return
			}
		}
		s.reply(req.ID, Result{Success: true})
		return
	}

	handler, ok := s.handlers[req.Type]
	if !ok {
		s.reply(req.ID, Result{Success: false, Error: fmt.Sprintf("unknown message type %q", req.Type)})
		return
	}

	data, err := s.invoke(ctx, handler, req.Payload)
	if err != nil {
		s.reply(req.ID, Result{Success: false, Error: err.Error()})
		return
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		s.reply(req.ID, Result{Success: false, Error: fmt.Sprintf("encode response: %v", err)})
		return
	}
	s.reply(req.ID, Result{Success: true, Data: encoded})
}

// invoke shields the serve loop from handler panics so the worker can keep
// answering subsequent requests.
func (s *Server) invoke(ctx context.Context, handler Handler, payload json.RawMessage) (data any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("handler panic: %v", recovered)
		}
	}()
	return handler(ctx, payload)
}

func (s *Server) reply(id uint64, result Result) {
	encoded, err := json.Marshal(Response{ID: id, Result: result})
	if err != nil {
		s.logger.Error("encode reply", logging.Error(err))
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.out.Write(append(encoded, '\n')); err != nil {
		s.logger.Error("write reply", logging.Error(err))
	}
}
