// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// These symbolic constants are mapped to HTTP responses via the fail() helper
// in this package and give clients a stable, machine-readable taxonomy on top
// of the status code:
//
//   - bad_request:          malformed or missing input (400)
//   - payload_too_large:    audio exceeding the configured bound (400)
//   - upstream_failed:      the completion/transcription provider failed (500)
//   - storage_unavailable:  the persistence layer failed (500)
//
// Generic codes mirror common HTTP semantics; domain-specific codes are
// reserved for failures the status alone cannot convey.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodePayloadTooLarge    = "payload_too_large"
	ErrCodeUpstreamFailed     = "upstream_failed"
	ErrCodeStorageUnavailable = "storage_unavailable"
)
