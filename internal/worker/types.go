package worker

import "encoding/json"

// Control message types understood by every worker regardless of its
// registered handlers.
const (
	TypeInit  = "init"
	TypeClose = "close"
)

// Request is one correlated call posted to a worker process.
type Request struct {
	ID      uint64          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Result carries the outcome of a single request.
type Result struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Response is the worker's reply for exactly one request id.
type Response struct {
	ID     uint64 `json:"id"`
	Result Result `json:"result"`
}
