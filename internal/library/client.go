package library

import (
	"context"
	"encoding/json"
	"fmt"

	"log/slog"

	"mediavault/internal/config"
	"mediavault/internal/worker"
)

// WorkerKind selects the library dispatcher when the daemon respawns itself.
const WorkerKind = "library"

// Client is the daemon-side view of the library worker. All index access
// crosses the worker boundary; the daemon never opens the database itself.
type Client struct {
	rpc *worker.Client
}

// NewClient builds an unstarted library client from daemon configuration.
// The config source path travels on the worker argv so the spawned process
// opens the same database.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	var extra []string
	if cfg.SourcePath != "" {
		extra = []string{"--config", cfg.SourcePath}
	}
	return &Client{rpc: worker.NewClient(worker.Options{
		Kind:             WorkerKind,
		OperationTimeout: cfg.Worker.OperationTimeout(),
		RestartDelay:     cfg.Worker.RestartDelay(),
		ExtraArgs:        extra,
		Logger:           logger,
	})}
}

// NewClientWithRPC wires an explicit transport, used by tests.
func NewClientWithRPC(rpc *worker.Client) *Client {
	return &Client{rpc: rpc}
}

// Start spawns the worker process and waits for its init handshake.
func (c *Client) Start(ctx context.Context) error {
	return c.rpc.Start(ctx)
}

// Terminate shuts the worker down. Idempotent.
func (c *Client) Terminate() {
	c.rpc.Terminate()
}

// Scan walks the given library directories and reconciles the index.
func (c *Client) Scan(ctx context.Context, dirs []string) (*ScanSummary, error) {
	data, err := c.rpc.Call(ctx, TypeScanLibrary, ScanRequest{Dirs: dirs})
	if err != nil {
		return nil, err
	}
	var summary ScanSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("decode scan summary: %w", err)
	}
	return &summary, nil
}

// List fetches indexed files, optionally restricted by kind.
func (c *Client) List(ctx context.Context, kind Kind, limit int) ([]File, error) {
	data, err := c.rpc.Call(ctx, TypeListFiles, ListRequest{Kind: kind, Limit: limit})
	if err != nil {
		return nil, err
	}
	var files []File
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("decode file list: %w", err)
	}
	return files, nil
}

// Get fetches one file by id.
func (c *Client) Get(ctx context.Context, id int64) (*File, error) {
	return c.get(ctx, GetRequest{ID: id})
}

// GetByPath fetches one file by absolute path.
func (c *Client) GetByPath(ctx context.Context, path string) (*File, error) {
	return c.get(ctx, GetRequest{Path: path})
}

func (c *Client) get(ctx context.Context, req GetRequest) (*File, error) {
	data, err := c.rpc.Call(ctx, TypeGetFile, req)
	if err != nil {
		return nil, err
	}
	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode file: %w", err)
	}
	return &file, nil
}

// RecordView bumps the view counter for a file.
func (c *Client) RecordView(ctx context.Context, id int64) error {
	_, err := c.rpc.Call(ctx, TypeRecordView, ViewRequest{ID: id})
	return err
}

// Stats aggregates index contents.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	data, err := c.rpc.Call(ctx, TypeLibraryStats, nil)
	if err != nil {
		return nil, err
	}
	var stats Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return &stats, nil
}
