// Package services defines the business logic of the relay pipeline. This
// file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer; upstream-provider errors live in the ai package
// (ai.ErrUpstream, ai.ErrAudioTooLarge) and pass through unchanged.
package services

import "errors"

var (
	// ErrEmptyContent is returned when a turn is submitted with missing or
	// whitespace-only content.
	ErrEmptyContent = errors.New("content is empty")

	// ErrInvalidRole is returned when a client submits a turn with a role
	// other than "user". Assistant turns are only ever created server-side.
	ErrInvalidRole = errors.New("role must be \"user\"")

	// ErrNoAudio is returned when an audio turn carries no audio payload.
	ErrNoAudio = errors.New("no audio payload attached")

	// ErrStorageUnavailable indicates the persistence layer failed. It is
	// unreachable with the default in-memory store but required of any
	// durable replacement.
	ErrStorageUnavailable = errors.New("message store unavailable")
)
