// Package httpapi wires the HTTP transport (Gin) to the relay service,
// middleware, and route handlers. It centralizes cross-cutting concerns:
// tracing, correlation IDs, structured logging, panic recovery, metrics,
// compression, CORS, and security headers.
//
// Design goals:
//   - Observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Streaming endpoints stay outside gzip and use a dedicated body cap
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/pmarques/go-drops-backend/internal/ai"
	"github.com/pmarques/go-drops-backend/internal/config"
	"github.com/pmarques/go-drops-backend/internal/http/handlers"
	"github.com/pmarques/go-drops-backend/internal/http/middleware"
	"github.com/pmarques/go-drops-backend/internal/repo"
	"github.com/pmarques/go-drops-backend/internal/services"

	// Swagger document for the API, served when SWAGGER_ENABLED.
	_ "github.com/pmarques/go-drops-backend/docs"
)

// jsonBodyLimit caps request bodies on the JSON endpoints. Audio uploads get
// their own, larger cap derived from config.
const jsonBodyLimit = 1 << 20

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Metrics
//  6. Gzip (streaming and metrics paths excluded — compression would defeat
//     per-fragment flushing)
//  7. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, gw ai.Gateway, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 6) Compression for the JSON surface only
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{
		joinPath(cfg.APIBasePath, "/messages/stream"),
		joinPath(cfg.APIBasePath, "/messages/audio"),
		"/metrics",
	})))

	// 7) CORS posture (allow all when no allowlist is configured — the
	// widget is embedded on arbitrary portfolio pages)
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Health doubles as a readiness probe: a cheap count proves the store is
	// reachable and reports the conversation size.
	r.GET("/health", func(c *gin.Context) {
		total, err := repo.CountMessages(c.Request.Context(), db)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "messages": total})
	})

	// Swagger UI (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: relay service ← gateway + db
	relay := services.NewRelayService(db, gw)
	relay.MaxAudioBytes = cfg.MaxAudioBytes
	h := handlers.New(relay, cfg.MaxAudioBytes)

	// Public API. The multipart overhead margin keeps a maximal recording
	// from being cut off by the transport-level cap.
	audioBodyLimit := cfg.MaxAudioBytes + jsonBodyLimit
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/messages", h.ListMessages)
		api.POST("/messages", limitBody(jsonBodyLimit), h.PostMessage)
		api.POST("/messages/stream", limitBody(jsonBodyLimit), h.StreamMessage)
		api.POST("/messages/audio", limitBody(audioBodyLimit), h.AudioMessage)
	}
}

// limitBody returns a Gin middleware that caps the request body size using
// http.MaxBytesReader. Requests exceeding the cap cause downstream body
// reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// joinPath joins an API base prefix with a route suffix using the same root
// handling as groupWithPrefix, so exclusion lists match registered routes.
func joinPath(prefix, suffix string) string {
	if prefix == "" || prefix == "/" {
		return suffix
	}
	return prefix + suffix
}
