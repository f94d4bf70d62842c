// Package hls runs the bounded pool of ffmpeg sessions that turn library
// files into HTTP Live Streaming output. Admission is capped, idle sessions
// are swept, and readiness is observed through the playlist file the encoder
// writes.
package hls
