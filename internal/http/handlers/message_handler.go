// Message HTTP handlers.
//
// This file exposes the REST surface of the portfolio assistant:
//   - GET  /api/messages         (full conversation, ascending timestamp)
//   - POST /api/messages         (plain turn: user + assistant pair)
//   - POST /api/messages/stream  (streaming turn: chunked text/plain body)
//   - POST /api/messages/audio   (recorded audio turn: same streaming body)
//
// Handlers are transport-thin: they (de)serialize requests, call the relay
// service, and translate results into HTTP responses. The two streaming
// endpoints write raw text fragments as they arrive and flush after each
// one; once the first byte is out, failures can only be surfaced in-band.
package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pmarques/go-drops-backend/internal/ai"
	"github.com/pmarques/go-drops-backend/internal/domain"
	"github.com/pmarques/go-drops-backend/internal/http/middleware"
	"github.com/pmarques/go-drops-backend/internal/services"
)

//
// Service contract (context-aware)
//

// RelayService defines the relay-pipeline operations consumed by the HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation.
type RelayService interface {
	// History returns every persisted turn in insertion order.
	History(ctx context.Context) ([]domain.Message, error)
	// Answer runs a plain turn and returns the persisted user/assistant pair.
	Answer(ctx context.Context, role, content string) (user, assistant *domain.Message, err error)
	// AnswerStream runs a streaming turn, handing each fragment to forward.
	AnswerStream(ctx context.Context, role, content string, forward func(string) error) (*domain.Message, error)
	// AnswerAudio transcribes audio, persists the user turn, then streams.
	AnswerAudio(ctx context.Context, audio []byte, mimeType, filename string, forward func(string) error) (*domain.Message, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the assistant API.
type Handlers struct {
	relay RelayService

	// maxAudioBytes bounds accepted recordings; zero means 10 MiB.
	maxAudioBytes int64
}

// New constructs a Handlers instance bound to the given relay service.
func New(relay RelayService, maxAudioBytes int64) *Handlers {
	if maxAudioBytes <= 0 {
		maxAudioBytes = 10 << 20
	}
	return &Handlers{relay: relay, maxAudioBytes: maxAudioBytes}
}

//
// DTOs
//

// PostMessageRequest is the JSON payload for submitting a turn.
type PostMessageRequest struct {
	// Content is the user's message text.
	Content string `json:"content" example:"What has Pedro worked on?"`
	// Role must be "user" (or empty, which defaults to it).
	Role string `json:"role" example:"user"`
}

// PostMessageResponse pairs the persisted user turn with the assistant reply.
type PostMessageResponse struct {
	UserMessage      *domain.Message `json:"userMessage"`
	AssistantMessage *domain.Message `json:"assistantMessage"`
}

//
// Handlers
//

// ListMessages godoc
// @ID          listMessages
// @Summary     List all messages
// @Description Returns the full conversation ordered by timestamp ascending.
// @Tags        Messages
// @Produce     json
//
// @Success     200  {array}   domain.Message
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	msgs, err := h.relay.History(c.Request.Context())
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, msgs)
}

// PostMessage godoc
// @ID          postMessage
// @Summary     Submit a plain turn
// @Description Persists the user turn, fetches a one-shot completion, persists the reply, and returns both.
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.PostMessageRequest  true  "User turn"
//
// @Success     200  {object}  handlers.PostMessageResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Upstream or storage failure"
// @Router      /messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	user, assistant, err := h.relay.Answer(c.Request.Context(), req.Role, req.Content)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, PostMessageResponse{UserMessage: user, AssistantMessage: assistant})
}

// StreamMessage godoc
// @ID          streamMessage
// @Summary     Submit a streaming turn
// @Description Persists the user turn and streams the reply as chunked text/plain, one fragment per flush. Failures after the first byte are appended in-band as a plain-text notice.
// @Tags        Messages
// @Accept      json
// @Produce     plain
//
// @Param       body  body  handlers.PostMessageRequest  true  "User turn"
//
// @Success     200  {string}  string  "Raw reply text"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Upstream failure before streaming began"
// @Router      /messages/stream [post]
func (h *Handlers) StreamMessage(c *gin.Context) {
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	fw := newStreamWriter(c)
	_, err := h.relay.AnswerStream(c.Request.Context(), req.Role, req.Content, fw.forward)
	fw.finish(c, err)
}

// AudioMessage godoc
// @ID          audioMessage
// @Summary     Submit a recorded-audio turn
// @Description Transcribes the uploaded recording, persists the transcript as the user turn (with the audio embedded as a data URI), and streams the reply as chunked text/plain.
// @Tags        Messages
// @Accept      multipart/form-data
// @Produce     plain
//
// @Param       audio  formData  file  true  "Recorded audio (≤10 MB, audio MIME type)"
//
// @Success     200  {string}  string  "Raw reply text"
// @Failure     400  {object}  handlers.ErrorResponse  "Missing, oversize, or non-audio file"
// @Failure     500  {object}  handlers.ErrorResponse  "Transcription or completion failure"
// @Router      /messages/audio [post]
func (h *Handlers) AudioMessage(c *gin.Context) {
	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "no audio file provided")
		return
	}
	defer file.Close()

	if !isAudioUpload(header) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "file must be an audio recording")
		return
	}

	// Read at most one byte past the bound so oversize payloads are rejected
	// before any transcription call or store write.
	audio, err := io.ReadAll(io.LimitReader(file, h.maxAudioBytes+1))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "could not read audio file")
		return
	}
	if int64(len(audio)) > h.maxAudioBytes {
		fail(c, http.StatusBadRequest, ErrCodePayloadTooLarge, "audio exceeds the size limit")
		return
	}

	fw := newStreamWriter(c)
	_, err = h.relay.AnswerAudio(c.Request.Context(), audio, header.Header.Get("Content-Type"), header.Filename, fw.forward)
	fw.finish(c, err)
}

//
// Streaming plumbing
//

// streamWriter forwards fragments to the client, deferring status and
// headers until the first fragment so pre-stream failures can still produce
// a normal JSON error response.
type streamWriter struct {
	w     gin.ResponseWriter
	wrote bool
}

func newStreamWriter(c *gin.Context) *streamWriter {
	return &streamWriter{w: c.Writer}
}

// forward writes one fragment and flushes it immediately.
func (fw *streamWriter) forward(fragment string) error {
	if !fw.wrote {
		fw.begin()
	}
	if _, err := io.WriteString(fw.w, fragment); err != nil {
		return err
	}
	fw.w.Flush()
	return nil
}

// begin commits the streaming status and headers.
func (fw *streamWriter) begin() {
	h := fw.w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	fw.w.WriteHeader(http.StatusOK)
	fw.wrote = true
}

// finish closes out a streaming request. Before the first byte, errors map
// to normal JSON responses; afterwards the only option is the fixed in-band
// notice. A nil error with no output still commits an empty 200 body.
func (fw *streamWriter) finish(c *gin.Context, err error) {
	switch {
	case err == nil:
		if !fw.wrote {
			fw.begin()
		}
	case !fw.wrote:
		failService(c, err)
	default:
		// Already-forwarded content is not retracted.
		if _, werr := io.WriteString(fw.w, streamErrNotice); werr == nil {
			fw.w.Flush()
		}
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Msg("stream terminated after output began")
	}
}

//
// Helpers
//

// failService maps relay/service errors onto the HTTP error taxonomy.
func failService(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyContent),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrNoAudio):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, ai.ErrAudioTooLarge):
		fail(c, http.StatusBadRequest, ErrCodePayloadTooLarge, "audio exceeds the size limit")
	case errors.Is(err, ai.ErrUpstream):
		fail(c, http.StatusInternalServerError, ErrCodeUpstreamFailed, "failed to generate a response")
	case errors.Is(err, services.ErrStorageUnavailable):
		fail(c, http.StatusInternalServerError, ErrCodeStorageUnavailable, "message store unavailable")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to process message")
	}
}

// isAudioUpload accepts audio/* parts plus the webm container some browser
// recorders label as video.
func isAudioUpload(header *multipart.FileHeader) bool {
	ct := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if strings.HasPrefix(ct, "audio/") || ct == "video/webm" {
		return true
	}
	// Some clients send octet-stream; fall back to the filename extension.
	if ct == "" || ct == "application/octet-stream" {
		name := strings.ToLower(header.Filename)
		for _, ext := range []string{".webm", ".wav", ".mp3", ".m4a", ".ogg", ".flac"} {
			if strings.HasSuffix(name, ext) {
				return true
			}
		}
	}
	return false
}
