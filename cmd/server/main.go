// Handoff Voice - two-agent voice assistant server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/handoff-voice/internal/api"
	"github.com/ashureev/handoff-voice/internal/config"
	"github.com/ashureev/handoff-voice/internal/identity"
	"github.com/ashureev/handoff-voice/internal/intent"
	"github.com/ashureev/handoff-voice/internal/middleware"
	"github.com/ashureev/handoff-voice/internal/orchestrator"
	"github.com/ashureev/handoff-voice/internal/providers"
	"github.com/ashureev/handoff-voice/internal/reasoning"
	"github.com/ashureev/handoff-voice/internal/session"
	"github.com/ashureev/handoff-voice/internal/telemetry"
	"github.com/ashureev/handoff-voice/internal/transcriptlog"
	"github.com/ashureev/handoff-voice/web"
)

// version is set at build time.
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		ServiceName:    "handoff-voice",
		ServiceVersion: version,
		Endpoint:       cfg.OTLPEndpoint,
	})
	if err != nil {
		slog.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	gateways, err := providers.Build(cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize providers", "error", err)
		os.Exit(1)
	}
	slog.Info("Providers ready", "reasoning", cfg.Reasoning.Provider, "speech", cfg.Speech.Provider)

	reasoner := reasoning.New(gateways.Backend,
		reasoning.WithMaxTokens(cfg.Reasoning.MaxTokens),
		reasoning.WithTemperature(cfg.Reasoning.Temperature),
		reasoning.WithLogger(logger),
	)

	transcripts, err := transcriptlog.New(transcriptlog.Config{
		Enabled:   cfg.TranscriptLog.Enabled,
		Dir:       cfg.TranscriptLog.Dir,
		QueueSize: cfg.TranscriptLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize transcript log", "error", err)
		os.Exit(1)
	}

	sessions := session.NewManager(
		orchestrator.Config{
			MinAudioBytes:     cfg.MinAudioBytes,
			StatusRevertDelay: cfg.StatusRevertDelay,
		},
		orchestrator.Deps{
			Detector:    intent.NewDetector(),
			Reasoner:    reasoner,
			Transcriber: gateways.Transcriber,
			Synthesizer: gateways.Synthesizer,
		},
		transcripts.Sink,
		logger,
	)

	// Initialize handlers.
	apiHandler := api.NewHandler(api.Deps{
		Sessions:    sessions,
		Reasoner:    reasoner,
		Transcriber: gateways.Transcriber,
		Synthesizer: gateways.Synthesizer,
		Providers:   gateways.Names(),
		Timeout:     cfg.GatewayTimeout,
		Logger:      logger,
	})
	wsHandler := api.NewWebSocketHandler(sessions, cfg.FrontendURL, cfg.IsDevelopment(), logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	apiHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/session", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// WebSocket sessions are long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	session.StartReaper(ctx, sessions, cfg.SessionTTL, cfg.SessionSweepInterval, func(id string) {
		slog.Debug("Session expired", "session_id", id)
	})

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sessions.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if err := transcripts.Close(); err != nil {
		slog.Error("Failed to close transcript log", "error", err)
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to flush traces", "error", err)
	}

	slog.Info("Server stopped successfully")
}
