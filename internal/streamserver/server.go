package streamserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"log/slog"

	"mediavault/internal/config"
	"mediavault/internal/hls"
	"mediavault/internal/httprange"
	"mediavault/internal/logging"
	"mediavault/internal/mimetype"
	"mediavault/internal/services"
)

// CloudSource answers byte-range reads for remotely hosted files.
type CloudSource interface {
	Open(ctx context.Context, fileID string, rng *httprange.Range) (io.ReadCloser, int64, error)
	Size(ctx context.Context, fileID string) (int64, error)
}

// Server is the HTTP surface that streams local files, cloud files, and HLS
// output. It composes the range resolver, the tiered source, and the
// transcode manager; it performs no path authorization beyond the injected
// Authorizer.
type Server struct {
	bind   string
	logger *slog.Logger
	auth   Authorizer
	cloud  CloudSource
	hls    *hls.Manager
	onView func(path string)

	mux      *http.ServeMux
	listener net.Listener
	server   *http.Server
}

// Option adjusts optional collaborators.
type Option func(*Server)

// WithCloudSource enables the /cloud/ routes.
func WithCloudSource(source CloudSource) Option {
	return func(s *Server) { s.cloud = source }
}

// WithViewHook is called after a whole-file or start-of-file stream begins,
// so the daemon can record views best-effort.
func WithViewHook(hook func(path string)) Option {
	return func(s *Server) { s.onView = hook }
}

// New builds the stream server. The HLS manager may be nil in tests that only
// exercise file routes.
func New(cfg *config.Config, auth Authorizer, manager *hls.Manager, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		bind:   cfg.Paths.MediaBind,
		logger: logging.NewComponentLogger(logger, "streamserver"),
		auth:   auth,
		hls:    manager,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/media/", s.handleMedia)
	mux.HandleFunc("/cloud/", s.handleCloud)
	mux.HandleFunc("/hls/start", s.handleHLSStart)
	mux.HandleFunc("/hls/", s.handleHLSFile)
	s.mux = mux

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the route table, used by tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start binds and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("media listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("media server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("media server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down, letting in-flight streams drain briefly.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
}

// Addr reports the bound address, valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	requestPath := strings.TrimPrefix(r.URL.Path, "/media/")
	resolved, ok := s.auth.Authorize(requestPath)
	if !ok {
		s.writeError(w, http.StatusNotFound, "file not found")
		return
	}

	info, err := os.Stat(resolved)
	if err != nil || info.IsDir() {
		s.writeError(w, http.StatusNotFound, "file not found")
		return
	}
	totalSize := info.Size()

	rng, err := httprange.Resolve(r.Header.Get("Range"), totalSize)
	if err != nil {
		// A 416 carries only the Content-Range header, no body.
		w.Header().Set("Content-Range", httprange.UnsatisfiableContentRange(totalSize))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	w.Header().Set("Content-Type", mimetype.ForPath(resolved))
	w.Header().Set("Accept-Ranges", "bytes")

	f, err := os.Open(resolved)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "unable to open file")
		return
	}
	defer f.Close()

	if rng == nil {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", totalSize))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			s.recordView(resolved)
			_, _ = io.Copy(w, f)
		}
		return
	}

	w.Header().Set("Content-Range", rng.ContentRange())
	w.Header().Set("Content-Length", fmt.Sprintf("%d", rng.Length()))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodGet {
		if rng.Start == 0 {
			s.recordView(resolved)
		}
		if _, err := f.Seek(rng.Start, io.SeekStart); err != nil {
			return
		}
		_, _ = io.Copy(w, io.LimitReader(f, rng.Length()))
	}
}

func (s *Server) handleCloud(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.cloud == nil {
		s.writeError(w, http.StatusNotFound, "cloud streaming not configured")
		return
	}

	fileID := strings.TrimPrefix(r.URL.Path, "/cloud/")
	if fileID == "" || strings.Contains(fileID, "/") {
		s.writeError(w, http.StatusNotFound, "file not found")
		return
	}

	totalSize, err := s.cloud.Size(r.Context(), fileID)
	if err != nil {
		s.writeError(w, services.HTTPStatus(err), "file not found")
		return
	}

	rng, err := httprange.Resolve(r.Header.Get("Range"), totalSize)
	if err != nil {
		w.Header().Set("Content-Range", httprange.UnsatisfiableContentRange(totalSize))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Accept-Ranges", "bytes")

	if r.Method == http.MethodHead {
		if rng == nil {
			w.Header().Set("Content-Length", fmt.Sprintf("%d", totalSize))
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Range", rng.ContentRange())
		w.Header().Set("Content-Length", fmt.Sprintf("%d", rng.Length()))
		w.WriteHeader(http.StatusPartialContent)
		return
	}

	stream, length, err := s.cloud.Open(r.Context(), fileID, rng)
	if err != nil {
		s.writeError(w, services.HTTPStatus(err), "unable to open cloud file")
		return
	}
	defer stream.Close()

	// The stitched stream may end at the cached prefix, short of the
	// requested end; Content-Length and Content-Range describe what is
	// actually sent.
	w.Header().Set("Content-Length", fmt.Sprintf("%d", length))
	if rng == nil && length == totalSize {
		w.WriteHeader(http.StatusOK)
	} else {
		start := int64(0)
		if rng != nil {
			start = rng.Start
		}
		served := httprange.Range{Start: start, End: start + length - 1, TotalSize: totalSize}
		w.Header().Set("Content-Range", served.ContentRange())
		w.WriteHeader(http.StatusPartialContent)
	}
	_, _ = io.Copy(w, stream)
}

func (s *Server) handleHLSStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.hls == nil {
		s.writeError(w, http.StatusNotFound, "transcoding not configured")
		return
	}

	requestPath := r.URL.Query().Get("path")
	if requestPath == "" {
		s.writeError(w, http.StatusBadRequest, "missing path parameter")
		return
	}
	resolved, ok := s.auth.Authorize(requestPath)
	if !ok {
		s.writeError(w, http.StatusNotFound, "file not found")
		return
	}

	sessionID := hls.SessionIDForSource(resolved)
	info, err := s.hls.EnsureSession(r.Context(), sessionID, resolved)
	if err != nil {
		s.writeError(w, services.HTTPStatus(err), "unable to start transcode session")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"session_id": info.ID,
		"state":      string(info.State),
		"master_url": "/hls/" + info.ID + "/" + hls.MasterPlaylist,
	})
}

func (s *Server) handleHLSFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.hls == nil {
		s.writeError(w, http.StatusNotFound, "transcoding not configured")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/hls/")
	sessionID, name, ok := strings.Cut(rest, "/")
	if !ok || sessionID == "" || name == "" {
		s.writeError(w, http.StatusNotFound, "file not found")
		return
	}

	path, err := s.hls.OpenFile(sessionID, name)
	if err != nil {
		if errors.Is(err, services.ErrNotReady) {
			// Players poll; answer fast instead of holding the request
			// until the encoder catches up.
			s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "not ready"})
			return
		}
		s.writeError(w, services.HTTPStatus(err), "file not found")
		return
	}

	w.Header().Set("Content-Type", hlsContentType(name))
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}

func hlsContentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".m3u8"):
		return "application/vnd.apple.mpegurl"
	case strings.HasSuffix(name, ".ts"):
		return "video/mp2t"
	default:
		return "application/octet-stream"
	}
}

func (s *Server) recordView(path string) {
	if s.onView != nil {
		s.onView(path)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
