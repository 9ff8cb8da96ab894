// Package services – RelayService
//
// This file implements RelayService, the application-level component that
// orchestrates one chat turn: validate the input, persist the user turn,
// call the upstream AI gateway (one-shot or streaming), forward output to
// the caller as it is produced, and persist the assistant turn when the
// reply is complete.
//
// Failure policy (deliberate, inherited from the product):
//   - one-shot path: an upstream failure leaves the user turn persisted and
//     persists no assistant turn; there is no rollback.
//   - streaming path: a mid-stream failure discards the accumulated partial
//     reply entirely; no assistant turn is persisted for a failed stream.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// role and payload-size attributes.

package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"gorm.io/gorm"

	"github.com/pmarques/go-drops-backend/internal/ai"
	"github.com/pmarques/go-drops-backend/internal/domain"
	"github.com/pmarques/go-drops-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultMaxAudioBytes = 10 << 20 // 10 MiB

// RelayService connects inbound chat turns to the AI gateway and the message
// store. All fields are injected once at startup; the zero MaxAudioBytes
// falls back to 10 MiB.
type RelayService struct {
	DB      *gorm.DB
	Gateway ai.Gateway

	// MaxAudioBytes bounds the accepted audio payload size.
	MaxAudioBytes int64
}

// NewRelayService constructs a RelayService with the default audio bound.
func NewRelayService(db *gorm.DB, gw ai.Gateway) *RelayService {
	return &RelayService{DB: db, Gateway: gw, MaxAudioBytes: defaultMaxAudioBytes}
}

// Answer handles a plain (non-streaming) turn: it persists the user turn,
// requests a one-shot completion, persists the assistant turn, and returns
// both. When the completion fails the user turn stays persisted, assistant
// is nil, and the error propagates.
func (s *RelayService) Answer(ctx context.Context, role, content string) (user, assistant *domain.Message, err error) {
	tr := otel.Tracer("services/RelayService")
	ctx, span := tr.Start(ctx, "Answer",
		trace.WithAttributes(attribute.Int("content.len", len(content))),
	)
	defer span.End()

	content, err = s.validateTurn(role, content)
	if err != nil {
		return nil, nil, err
	}

	user, err = repo.CreateMessage(ctx, s.DB, domain.RoleUser, content, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	reply, err := s.Gateway.Complete(ctx, content)
	if err != nil {
		return user, nil, err
	}

	assistant, err = repo.CreateMessage(ctx, s.DB, domain.RoleAssistant, reply, nil)
	if err != nil {
		return user, nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return user, assistant, nil
}

// AnswerStream handles a streaming turn. Each fragment is appended to an
// accumulator and handed to forward in production order before the next one
// is read; nothing is held back. On clean completion one assistant turn
// holding the full accumulated text is persisted and returned.
//
// A forward error means the caller is gone: the upstream stream is closed,
// the accumulator is discarded, and no assistant turn is persisted. The same
// policy applies to a mid-stream provider failure.
func (s *RelayService) AnswerStream(ctx context.Context, role, content string, forward func(fragment string) error) (*domain.Message, error) {
	tr := otel.Tracer("services/RelayService")
	ctx, span := tr.Start(ctx, "AnswerStream",
		trace.WithAttributes(attribute.Int("content.len", len(content))),
	)
	defer span.End()

	content, err := s.validateTurn(role, content)
	if err != nil {
		return nil, err
	}

	if _, err := repo.CreateMessage(ctx, s.DB, domain.RoleUser, content, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return s.relayStream(ctx, content, forward)
}

// AnswerAudio handles an audio turn. The payload is validated before any
// side effect, transcribed, persisted as the user turn (with the original
// recording embedded as a data URI so the conversation is reconstructable
// from the store alone), and then relayed exactly like AnswerStream with the
// transcript as the prompt.
func (s *RelayService) AnswerAudio(ctx context.Context, audio []byte, mimeType, filename string, forward func(fragment string) error) (*domain.Message, error) {
	tr := otel.Tracer("services/RelayService")
	ctx, span := tr.Start(ctx, "AnswerAudio",
		trace.WithAttributes(attribute.Int("audio.bytes", len(audio))),
	)
	defer span.End()

	if len(audio) == 0 {
		return nil, ErrNoAudio
	}
	max := s.MaxAudioBytes
	if max <= 0 {
		max = defaultMaxAudioBytes
	}
	if int64(len(audio)) > max {
		return nil, fmt.Errorf("%w: %d bytes", ai.ErrAudioTooLarge, len(audio))
	}

	transcript, err := s.Gateway.Transcribe(ctx, audio, filename)
	if err != nil {
		// Nothing has been persisted for a failed transcription.
		return nil, err
	}

	audioURL := dataURI(mimeType, audio)
	if _, err := repo.CreateMessage(ctx, s.DB, domain.RoleUser, transcript, &audioURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return s.relayStream(ctx, transcript, forward)
}

// relayStream runs the shared forward-and-accumulate loop and persists the
// assistant turn on clean completion.
func (s *RelayService) relayStream(ctx context.Context, prompt string, forward func(string) error) (*domain.Message, error) {
	stream, err := s.Gateway.Stream(ctx, prompt)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var acc strings.Builder
	for {
		fragment, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		acc.WriteString(fragment)
		if err := forward(fragment); err != nil {
			return nil, fmt.Errorf("forward fragment: %w", err)
		}
	}

	assistant, err := repo.CreateMessage(ctx, s.DB, domain.RoleAssistant, acc.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return assistant, nil
}

// History returns the whole conversation in insertion order.
func (s *RelayService) History(ctx context.Context) ([]domain.Message, error) {
	tr := otel.Tracer("services/RelayService")
	ctx, span := tr.Start(ctx, "History")
	defer span.End()

	msgs, err := repo.ListMessages(ctx, s.DB)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return msgs, nil
}

// Reset empties the store and resets the identifier counter. Used by tests
// and operator tooling; not reachable over HTTP.
func (s *RelayService) Reset(ctx context.Context) error {
	if err := repo.ClearMessages(ctx, s.DB); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// validateTurn normalizes and checks client input before any side effect.
func (s *RelayService) validateTurn(role, content string) (string, error) {
	if role != "" && role != domain.RoleUser {
		return "", ErrInvalidRole
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}
	return content, nil
}

// dataURI encodes audio bytes as a self-contained data URI.
func dataURI(mimeType string, audio []byte) string {
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(audio)
}
