// Package services defines the shared error taxonomy for the media-serving
// backbone.
//
// Sentinel markers classify failures from the worker boundary, the byte-range
// resolver, the tiered byte source, and the transcode manager. Wrap attaches
// component context while preserving the marker for errors.Is checks, and
// HTTPStatus translates the taxonomy into concrete response codes so HTTP
// handlers never leak raw failures to clients.
package services
