package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrWorkerNotInitialized = errors.New("worker not initialized")
	ErrTimeout              = errors.New("operation timed out")
	ErrWorkerCrashed        = errors.New("worker crashed")
	ErrInvalidRange         = errors.New("invalid byte range")
	ErrNotFound             = errors.New("not found")
	ErrServerBusy           = errors.New("server too busy")
	ErrTranscodeProcess     = errors.New("transcode process error")
	ErrNotReady             = errors.New("not ready yet")
	ErrValidation           = errors.New("validation error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrValidation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// HTTPStatus maps a classified error to the status code the streaming layer
// answers with. Unclassified errors map to 500 so raw failures never pick an
// accidental status.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidRange):
		return http.StatusRequestedRangeNotSatisfiable
	case errors.Is(err, ErrServerBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrNotReady):
		return http.StatusAccepted
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
