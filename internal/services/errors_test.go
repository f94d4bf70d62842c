package services_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"mediavault/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTranscodeProcess, "hls", "spawn", "encoder failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTranscodeProcess) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"hls", "spawn", "encoder failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"not_found", services.Wrap(services.ErrNotFound, "stream", "stat", "missing", nil), http.StatusNotFound},
		{"invalid_range", services.Wrap(services.ErrInvalidRange, "range", "resolve", "bad", nil), http.StatusRequestedRangeNotSatisfiable},
		{"busy", services.ErrServerBusy, http.StatusServiceUnavailable},
		{"timeout", services.ErrTimeout, http.StatusGatewayTimeout},
		{"validation", services.ErrValidation, http.StatusBadRequest},
		{"crash", services.ErrWorkerCrashed, http.StatusInternalServerError},
		{"unclassified", errors.New("io"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.HTTPStatus(tc.err); got != tc.want {
				t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}
