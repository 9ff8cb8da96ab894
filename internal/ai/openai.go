// OpenAI-backed Gateway implementation.
//
// A single client is constructed at process start and shared by every
// request. The base URL is configurable so tests (and OpenAI-compatible
// providers) can point the client elsewhere.
package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIOptions configures the OpenAI gateway. Zero values fall back to the
// defaults below.
type OpenAIOptions struct {
	APIKey          string
	BaseURL         string // optional override, e.g. for tests or proxies
	ChatModel       string // defaults to gpt-4o
	TranscribeModel string // defaults to whisper-1
	SystemPrompt    string // persona text prepended to every completion
	MaxTokens       int    // cap on completion length, defaults to 150
	MaxAudioBytes   int64  // transcription payload bound, defaults to 10 MiB
}

const (
	defaultChatModel     = openai.GPT4o
	defaultMaxTokens     = 150
	defaultMaxAudioBytes = 10 << 20

	// defaultSystemPrompt is the Indy persona used by the Drops portfolio
	// widget when no override is configured.
	defaultSystemPrompt = "You are Indy, Pedro's AI digital assistant for his portfolio website called 'Drops'. " +
		"You help visitors explore Pedro's professional life, including his curriculum & skills, working experience, " +
		"projects, and booking appointments. Be helpful, friendly, and professional. Keep responses concise, maximum 100 words."
)

// OpenAIGateway implements Gateway on top of the official REST API via
// sashabaranov/go-openai.
type OpenAIGateway struct {
	client          *openai.Client
	chatModel       string
	transcribeModel string
	systemPrompt    string
	maxTokens       int
	maxAudioBytes   int64
}

// NewOpenAIGateway builds a gateway from options, applying defaults for any
// zero-valued field.
func NewOpenAIGateway(opt OpenAIOptions) *OpenAIGateway {
	cfg := openai.DefaultConfig(opt.APIKey)
	if opt.BaseURL != "" {
		cfg.BaseURL = opt.BaseURL
	}

	g := &OpenAIGateway{
		client:          openai.NewClientWithConfig(cfg),
		chatModel:       opt.ChatModel,
		transcribeModel: opt.TranscribeModel,
		systemPrompt:    opt.SystemPrompt,
		maxTokens:       opt.MaxTokens,
		maxAudioBytes:   opt.MaxAudioBytes,
	}
	if g.chatModel == "" {
		g.chatModel = defaultChatModel
	}
	if g.transcribeModel == "" {
		g.transcribeModel = openai.Whisper1
	}
	if g.systemPrompt == "" {
		g.systemPrompt = defaultSystemPrompt
	}
	if g.maxTokens <= 0 {
		g.maxTokens = defaultMaxTokens
	}
	if g.maxAudioBytes <= 0 {
		g.maxAudioBytes = defaultMaxAudioBytes
	}
	return g
}

// request builds the chat payload shared by Complete and Stream.
func (g *OpenAIGateway) request(prompt string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:     g.chatModel,
		MaxTokens: g.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: g.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
}

// Complete performs a one-shot chat completion.
func (g *OpenAIGateway) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, g.request(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion response", ErrUpstream)
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream opens a streaming chat completion and adapts it to TokenStream.
func (g *OpenAIGateway) Stream(ctx context.Context, prompt string) (TokenStream, error) {
	stream, err := g.client.CreateChatCompletionStream(ctx, g.request(prompt))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return &openaiTokenStream{inner: stream}, nil
}

// Transcribe sends recorded audio to the transcription model.
func (g *OpenAIGateway) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if int64(len(audio)) > g.maxAudioBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrAudioTooLarge, len(audio))
	}
	if filename == "" {
		filename = "audio.webm"
	}
	resp, err := g.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    g.transcribeModel,
		FilePath: filename, // multipart filename only; bytes come from Reader
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// openaiTokenStream adapts *openai.ChatCompletionStream to TokenStream,
// skipping empty deltas so consumers only ever see real fragments.
type openaiTokenStream struct {
	inner *openai.ChatCompletionStream
}

// Recv returns the next non-empty fragment, io.EOF at completion, or a
// wrapped ErrUpstream on provider failure.
func (s *openaiTokenStream) Recv() (string, error) {
	for {
		resp, err := s.inner.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

// Close releases the underlying HTTP response.
func (s *openaiTokenStream) Close() error { return s.inner.Close() }
