// Package worker provides the correlated request/response channel between the
// daemon and its isolated worker processes.
//
// The Client spawns the current executable with a "worker <kind>" argv and
// speaks newline-delimited JSON over the child's stdin/stdout: requests carry
// {id, type, payload}, replies carry {id, result: {success, data | error}}.
// Exactly one reply settles each id; replies may arrive out of order and late
// replies for timed-out ids are dropped. When the process crashes, every
// still-pending call rejects and the correlation table is cleared; an optional
// restart policy respawns the worker without replaying failed calls.
//
// The Server side runs inside the worker process: a single dispatcher keyed by
// message type that always answers exactly once per id, converting handler
// errors and panics into failure results instead of crashing the process.
package worker
