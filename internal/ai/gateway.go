// Package ai abstracts the hosted model providers behind a small gateway
// interface: one-shot chat completion, streamed chat completion, and audio
// transcription. The rest of the application depends on this interface only,
// so tests substitute fakes and the provider can change without touching the
// relay logic.
package ai

import (
	"context"
	"errors"
)

// Sentinel errors returned by gateway implementations. Callers classify
// failures with errors.Is; provider-specific detail is attached by wrapping.
var (
	// ErrUpstream indicates the completion or transcription provider failed
	// or was unreachable. There is no automatic retry anywhere in this
	// service; callers surface a generic failure to the end user.
	ErrUpstream = errors.New("upstream AI provider failed")

	// ErrAudioTooLarge indicates an audio payload exceeded the configured
	// size bound. It is detected before any provider call is made.
	ErrAudioTooLarge = errors.New("audio payload too large")
)

// TokenStream is a finite sequence of text fragments produced by a streaming
// completion, in provider order. Recv returns io.EOF when the provider
// signals completion and a wrapped ErrUpstream on mid-stream failure.
// Close releases the underlying provider connection; it must be called when
// the consumer abandons iteration early.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// Gateway is the upstream AI boundary used by the relay pipeline. Persona
// text and generation parameters (model, maximum response length) are fixed
// configuration owned by the implementation, not by callers.
//
// Implementations must be safe for concurrent use.
type Gateway interface {
	// Complete returns the full reply for prompt in one shot.
	Complete(ctx context.Context, prompt string) (string, error)

	// Stream opens a single long-lived completion request and returns the
	// fragment stream. No fragment is buffered beyond immediate forwarding.
	Stream(ctx context.Context, prompt string) (TokenStream, error)

	// Transcribe converts recorded audio to text. filename carries the
	// client-side name so the provider can infer the container format.
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}
