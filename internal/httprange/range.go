package httprange

import (
	"fmt"
	"strconv"
	"strings"

	"mediavault/internal/services"
)

// Range is a validated inclusive byte window into a file.
type Range struct {
	Start     int64
	End       int64
	TotalSize int64
}

// Length returns the number of bytes covered by the range.
func (r Range) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange renders the Content-Range header value for a 206 response.
func (r Range) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, r.TotalSize)
}

// UnsatisfiableContentRange renders the Content-Range header value that
// accompanies a 416 rejection for a file of the given size.
func UnsatisfiableContentRange(totalSize int64) string {
	return fmt.Sprintf("bytes */%d", totalSize)
}

// Resolve parses an HTTP Range header against a total size. A missing header
// yields (nil, nil): the caller serves the whole file with status 200. A
// malformed or unsatisfiable header yields an ErrInvalidRange-classified
// error; the caller answers 416. Only the single-range bytes=start-end form is
// supported, with end defaulting to totalSize-1 when omitted.
func Resolve(header string, totalSize int64) (*Range, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}
	if totalSize <= 0 {
		return nil, reject(header, totalSize, "file has no readable bytes")
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, reject(header, totalSize, "unsupported range unit")
	}
	startText, endText, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, reject(header, totalSize, "missing range separator")
	}

	start, err := strconv.ParseInt(strings.TrimSpace(startText), 10, 64)
	if err != nil || start < 0 {
		return nil, reject(header, totalSize, "start is not a valid offset")
	}

	end := totalSize - 1
	if trimmed := strings.TrimSpace(endText); trimmed != "" {
		end, err = strconv.ParseInt(trimmed, 10, 64)
		if err != nil || end < 0 {
			return nil, reject(header, totalSize, "end is not a valid offset")
		}
	}

	if start >= totalSize || end >= totalSize || start > end {
		return nil, reject(header, totalSize, "window falls outside the file")
	}

	return &Range{Start: start, End: end, TotalSize: totalSize}, nil
}

func reject(header string, totalSize int64, message string) error {
	return services.Wrap(
		services.ErrInvalidRange,
		"range",
		"resolve",
		fmt.Sprintf("%s (header %q, size %d)", message, header, totalSize),
		nil,
	)
}
