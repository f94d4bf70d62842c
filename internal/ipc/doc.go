// Package ipc provides JSON-RPC daemon control over a Unix domain socket,
// used by the mediavault CLI to query status, manage transcode sessions,
// and trigger library scans.
package ipc
