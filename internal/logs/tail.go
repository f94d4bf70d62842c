// Package logs reads back the daemon log file for the CLI, with optional
// follow semantics that wait briefly for new lines.
package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// TailOptions controls one Tail call.
type TailOptions struct {
	// Offset is the byte position to read from. Negative selects the last
	// Limit lines of the file.
	Offset int64
	// Limit caps the number of returned lines. Zero selects a default.
	Limit int
	// Follow waits up to Wait for new lines when the offset is at EOF.
	Follow bool
	Wait   time.Duration
}

// TailResult carries lines plus the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

const defaultTailLimit = 100

// Tail reads log lines from path. A missing file is not an error; it
// returns an empty result so callers can poll a daemon that has not
// logged yet.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	result := TailResult{Offset: opts.Offset}

	if opts.Limit <= 0 {
		opts.Limit = defaultTailLimit
	}
	if opts.Wait < 0 {
		opts.Wait = 0
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			result.Offset = 0
			return result, nil
		}
		return result, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return result, fmt.Errorf("log path %q is a directory", path)
	}

	if opts.Offset < 0 {
		return readLastLines(path, opts.Limit)
	}

	result, err = readFromOffset(path, opts.Offset, opts.Limit)
	if err != nil {
		return result, err
	}
	if opts.Follow && opts.Wait > 0 && len(result.Lines) == 0 {
		return waitForLines(ctx, path, result.Offset, opts.Limit, opts.Wait)
	}
	return result, nil
}

func readLastLines(path string, limit int) (TailResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return TailResult{}, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	var lines []string
	var offset int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		offset += int64(len(scanner.Bytes())) + 1
		lines = append(lines, line)
		if len(lines) > limit {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return TailResult{}, fmt.Errorf("scan log file: %w", err)
	}
	return TailResult{Lines: lines, Offset: offset}, nil
}

func readFromOffset(path string, offset int64, limit int) (TailResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}
	// The file was rotated or truncated; start over from the beginning.
	if offset > size {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}

	result := TailResult{Offset: offset}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		result.Lines = append(result.Lines, scanner.Text())
		result.Offset += int64(len(scanner.Bytes())) + 1
		if len(result.Lines) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("scan log file: %w", err)
	}
	return result, nil
}

func waitForLines(ctx context.Context, path string, offset int64, limit int, wait time.Duration) (TailResult, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return TailResult{Offset: offset}, ctx.Err()
		case <-ticker.C:
		}

		result, err := readFromOffset(path, offset, limit)
		if err != nil || len(result.Lines) > 0 {
			return result, err
		}
		offset = result.Offset
		if time.Now().After(deadline) {
			return result, nil
		}
	}
}
