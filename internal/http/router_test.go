package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pmarques/go-drops-backend/internal/ai"
	"github.com/pmarques/go-drops-backend/internal/config"
	"github.com/pmarques/go-drops-backend/internal/repo"
)

func init() { gin.SetMode(gin.TestMode) }

// scriptedGateway returns a canned reply on every operation.
type scriptedGateway struct{ reply string }

func (g scriptedGateway) Complete(ctx context.Context, prompt string) (string, error) {
	return g.reply, nil
}

func (g scriptedGateway) Stream(ctx context.Context, prompt string) (ai.TokenStream, error) {
	return &cannedStream{fragments: []string{g.reply}}, nil
}

func (g scriptedGateway) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	return "transcript", nil
}

type cannedStream struct {
	fragments []string
	pos       int
}

func (s *cannedStream) Recv() (string, error) {
	if s.pos >= len(s.fragments) {
		return "", io.EOF
	}
	f := s.fragments[s.pos]
	s.pos++
	return f, nil
}

func (s *cannedStream) Close() error { return nil }

func newServer(t *testing.T, mutate func(*config.Config)) *gin.Engine {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.DBDSN = fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	if mutate != nil {
		mutate(&cfg)
	}

	db, err := repo.Open(cfg.DBDSN)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	r := gin.New()
	RegisterRoutes(r, db, scriptedGateway{reply: "hello"}, cfg)
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	// Skip gzip negotiation so bodies in assertions stay plain.
	req.Header.Set("Accept-Encoding", "identity")
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	r := newServer(t, nil)

	if w := get(r, "/health"); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("health: %d %s", w.Code, w.Body.String())
	}
	if w := get(r, "/metrics"); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("metrics: %d", w.Code)
	}
}

func TestRouter_HealthReportsMessageCount(t *testing.T) {
	r := newServer(t, nil)

	w := get(r, "/health")
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	if body["messages"] != float64(0) {
		t.Fatalf("fresh store count = %v", body["messages"])
	}

	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(`{"content":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)

	w = get(r, "/health")
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	// One turn produces a user and an assistant message.
	if body["messages"] != float64(2) {
		t.Fatalf("count after a turn = %v", body["messages"])
	}
}

func TestRouter_MessageRoundTrip(t *testing.T) {
	r := newServer(t, nil)

	// Plain turn.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(`{"content":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", "identity")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("post: %d %s", w.Code, w.Body.String())
	}

	// The pair shows up in the listing, user turn first.
	w = get(r, "/api/messages")
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	var msgs []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	if len(msgs) != 2 || msgs[0]["role"] != "user" || msgs[1]["role"] != "assistant" {
		t.Fatalf("messages = %v", msgs)
	}
	if msgs[1]["content"] != "hello" {
		t.Fatalf("assistant content = %v", msgs[1]["content"])
	}
}

func TestRouter_StreamRoundTrip(t *testing.T) {
	r := newServer(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/messages/stream", strings.NewReader(`{"content":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("stream: %d %s", w.Code, w.Body.String())
	}
	// The stream path is excluded from gzip, so the body is raw text.
	if w.Body.String() != "hello" {
		t.Fatalf("body = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type = %q", ct)
	}
}

func TestRouter_NoRouteAndNoMethod(t *testing.T) {
	r := newServer(t, nil)

	if w := get(r, "/nope"); w.Code != http.StatusNotFound {
		t.Fatalf("no route: %d", w.Code)
	} else if !strings.Contains(w.Body.String(), "not_found") {
		t.Fatalf("no route body: %s", w.Body.String())
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/messages", nil)
	req.Header.Set("Accept-Encoding", "identity")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("no method: %d", w.Code)
	}
}

func TestRouter_RequestIDOnEveryResponse(t *testing.T) {
	r := newServer(t, nil)
	if w := get(r, "/health"); w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID")
	}
}

func TestRouter_SwaggerToggle(t *testing.T) {
	off := newServer(t, nil)
	if w := get(off, "/swagger/index.html"); w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be off by default: %d", w.Code)
	}

	on := newServer(t, func(cfg *config.Config) { cfg.SwaggerEnabled = true })
	if w := get(on, "/swagger/index.html"); w.Code != http.StatusOK {
		t.Fatalf("swagger enabled: %d", w.Code)
	}
}

func TestRouter_RootBasePathStreamStaysUncompressed(t *testing.T) {
	r := newServer(t, func(cfg *config.Config) { cfg.APIBasePath = "/" })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/messages/stream", strings.NewReader(`{"content":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("stream at root base path: %d %s", w.Code, w.Body.String())
	}
	// The exclusion list must match the registered route even at the bare
	// root, or the stream would be buffered and compressed.
	if enc := w.Header().Get("Content-Encoding"); enc == "gzip" {
		t.Fatalf("stream response was gzip-compressed")
	}
	if w.Body.String() != "hello" {
		t.Fatalf("body = %q", w.Body.String())
	}
}

func TestJoinPath(t *testing.T) {
	cases := []struct {
		prefix, suffix, want string
	}{
		{"/", "/messages/stream", "/messages/stream"},
		{"", "/messages/stream", "/messages/stream"},
		{"/api", "/messages/stream", "/api/messages/stream"},
		{"/v2/api", "/messages/audio", "/v2/api/messages/audio"},
	}
	for _, tc := range cases {
		if got := joinPath(tc.prefix, tc.suffix); got != tc.want {
			t.Errorf("joinPath(%q, %q) = %q, want %q", tc.prefix, tc.suffix, got, tc.want)
		}
	}
}

func TestRouter_CustomBasePath(t *testing.T) {
	r := newServer(t, func(cfg *config.Config) { cfg.APIBasePath = "/v2/api" })

	if w := get(r, "/v2/api/messages"); w.Code != http.StatusOK {
		t.Fatalf("custom base path: %d", w.Code)
	}
	if w := get(r, "/api/messages"); w.Code != http.StatusNotFound {
		t.Fatalf("old base path should 404: %d", w.Code)
	}
}

func TestRouter_JSONBodyLimit(t *testing.T) {
	r := newServer(t, nil)

	big := fmt.Sprintf(`{"content":%q}`, strings.Repeat("a", jsonBodyLimit+1))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", "identity")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("oversize JSON body: %d", w.Code)
	}
}
