package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"mediavault/internal/daemon"
	"mediavault/internal/library"
	"mediavault/internal/logging"
	"mediavault/internal/logs"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Mediavault", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.MediaAddr = status.MediaAddr
	resp.LockPath = status.LockFilePath
	resp.DatabasePath = status.DatabasePath
	if !status.StartedAt.IsZero() {
		resp.StartedAt = status.StartedAt.Format("2006-01-02 15:04:05")
	}
	resp.ActiveTranscodes = status.ActiveTranscodes
	resp.Sessions = status.Sessions
	resp.CacheFreeBytes = status.CacheFreeBytes
	resp.Library = status.Library
	resp.Dependencies = status.Dependencies
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) Scan(_ ScanRequest, resp *ScanResponse) error {
	s.log().Debug("library scan requested")
	summary, err := s.daemon.Scan(s.ctx)
	if err != nil {
		return err
	}
	resp.Scanned = summary.Scanned
	resp.Added = summary.Added
	resp.Updated = summary.Updated
	resp.Removed = summary.Removed
	s.log().Info("library scan complete",
		logging.String(logging.FieldEventType, "library_scan"),
		logging.Int64("scanned", summary.Scanned))
	return nil
}

func (s *service) LibraryList(req LibraryListRequest, resp *LibraryListResponse) error {
	files, err := s.daemon.ListFiles(s.ctx, library.Kind(req.Kind), req.Limit)
	if err != nil {
		return err
	}
	resp.Files = files
	return nil
}

func (s *service) LibraryStats(_ LibraryStatsRequest, resp *LibraryStatsResponse) error {
	stats, err := s.daemon.LibraryStats(s.ctx)
	if err != nil {
		return err
	}
	resp.Stats = *stats
	return nil
}

func (s *service) SessionList(_ SessionListRequest, resp *SessionListResponse) error {
	resp.Sessions = s.daemon.Sessions()
	return nil
}

func (s *service) SessionStop(req SessionStopRequest, resp *SessionStopResponse) error {
	if req.ID == "" {
		return errors.New("session stop requires an id")
	}
	s.log().Debug("session stop requested", logging.String(logging.FieldSessionID, req.ID))
	if err := s.daemon.StopSession(req.ID); err != nil {
		return err
	}
	resp.Stopped = true
	s.log().Info("session stopped via IPC",
		logging.String(logging.FieldEventType, "session_stop"),
		logging.String(logging.FieldSessionID, req.ID))
	return nil
}
