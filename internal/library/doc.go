// Package library maintains the SQLite-backed media index. The store runs
// inside the library worker process; the daemon reaches it only through the
// typed Client over the worker RPC boundary.
package library
