// Package daemon runs the long-lived mediavault process: it owns the
// library worker, the transcode session pool, the optional cloud cache,
// and the HTTP stream server, and guards against concurrent instances
// with a file lock.
package daemon
