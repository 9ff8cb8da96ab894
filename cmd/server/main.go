// Command server starts the Drops portfolio assistant backend.
//
// Startup order: environment (.env optional) → config → logging →
// tracing → store (SQLite, in-memory by default) → OpenAI gateway →
// HTTP router → graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pmarques/go-drops-backend/internal/ai"
	"github.com/pmarques/go-drops-backend/internal/config"
	httpapi "github.com/pmarques/go-drops-backend/internal/http"
	"github.com/pmarques/go-drops-backend/internal/observability"
	"github.com/pmarques/go-drops-backend/internal/repo"
	"github.com/pmarques/go-drops-backend/internal/sysutil"
)

// version is stamped at build time (-ldflags "-X main.version=…").
var version = "dev"

func main() {
	// .env is a convenience for local development; absence is not an error.
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded, using process environment")
	}

	cfg := config.MustLoad()

	// Logging
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	// Store
	db, err := repo.Open(cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Str("dsn", cfg.DBDSN).Msg("open store failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	// Upstream AI gateway
	if cfg.OpenAI.APIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is empty; upstream calls will fail")
	}
	gw := ai.NewOpenAIGateway(ai.OpenAIOptions{
		APIKey:          cfg.OpenAI.APIKey,
		BaseURL:         cfg.OpenAI.BaseURL,
		ChatModel:       cfg.OpenAI.ChatModel,
		TranscribeModel: cfg.OpenAI.TranscribeModel,
		SystemPrompt:    cfg.OpenAI.SystemPrompt,
		MaxTokens:       cfg.OpenAI.MaxTokens,
		MaxAudioBytes:   cfg.MaxAudioBytes,
	})

	// HTTP
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, gw, cfg)

	// LISTEN_ADDR takes precedence over PORT so deployments can bind a
	// specific interface (e.g. "127.0.0.1:8080" behind a local proxy).
	addr := sysutil.FirstNonEmpty(os.Getenv("LISTEN_ADDR"), ":"+cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
