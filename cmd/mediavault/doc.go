// Package main hosts the mediavault CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC
// calls against the daemon: status reporting, library listing and rescans,
// transcode session management, and configuration scaffolding. It
// centralizes configuration resolution and socket discovery so subcommands
// can focus on output formatting.
package main
