package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Mediavault.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Scan triggers a library rescan and waits for its summary.
func (c *Client) Scan() (*ScanResponse, error) {
	var resp ScanResponse
	if err := c.client.Call("Mediavault.Scan", ScanRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LibraryList returns indexed files, optionally filtered by kind.
func (c *Client) LibraryList(kind string, limit int) (*LibraryListResponse, error) {
	var resp LibraryListResponse
	req := LibraryListRequest{Kind: kind, Limit: limit}
	if err := c.client.Call("Mediavault.LibraryList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LibraryStats returns index aggregates.
func (c *Client) LibraryStats() (*LibraryStatsResponse, error) {
	var resp LibraryStatsResponse
	if err := c.client.Call("Mediavault.LibraryStats", LibraryStatsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionList returns the transcode session pool.
func (c *Client) SessionList() (*SessionListResponse, error) {
	var resp SessionListResponse
	if err := c.client.Call("Mediavault.SessionList", SessionListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Mediavault.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionStop evicts one transcode session by id.
func (c *Client) SessionStop(id string) (*SessionStopResponse, error) {
	var resp SessionStopResponse
	req := SessionStopRequest{ID: id}
	if err := c.client.Call("Mediavault.SessionStop", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
