// Package main is the entry point for the assistant API server. It keeps one
// assistant session per signed-in storefront user and exposes it over HTTP
// with a server-sent snapshot feed.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/capitalize-ai/tour-assistant/internal/agent"
	"github.com/capitalize-ai/tour-assistant/internal/assistant"
	redisstore "github.com/capitalize-ai/tour-assistant/internal/cache/redis"
	"github.com/capitalize-ai/tour-assistant/internal/config"
	"github.com/capitalize-ai/tour-assistant/internal/handler"
	"github.com/capitalize-ai/tour-assistant/internal/middleware"
	natsclient "github.com/capitalize-ai/tour-assistant/internal/nats"
	"github.com/capitalize-ai/tour-assistant/pkg/logger"
	"github.com/capitalize-ai/tour-assistant/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting assistant API server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(ctx, "tour-assistant-api", cfg.Tracing.Endpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	var checks []handler.Check

	// Turn records are optional; without NATS they are not published.
	var turns assistant.TurnRecorder
	if cfg.NATS.URL != "" {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATS.URL,
			CAFile:   cfg.NATS.CAFile,
			CertFile: cfg.NATS.CertFile,
			KeyFile:  cfg.NATS.KeyFile,
			Token:    cfg.NATS.Token,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		if err := natsclient.EnsureStream(ctx, natsClient.JetStream()); err != nil {
			log.Fatal("failed to ensure turn stream", zap.Error(err))
		}
		turns = natsclient.NewTurnPublisher(natsClient, log)
		checks = append(checks, handler.Check{Name: "nats", Fn: func(context.Context) error {
			if !natsClient.IsConnected() {
				return fmt.Errorf("not connected")
			}
			return nil
		}})
	}

	var activeRooms assistant.ActiveRoomStore
	if cfg.Redis.URI != "" {
		redisClient, err := redisstore.New(ctx, cfg.Redis.URI)
		if err != nil {
			log.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()

		activeRooms = redisstore.NewActiveRooms(redisClient, cfg.Redis.TTL)
		checks = append(checks, handler.Check{Name: "redis", Fn: redisClient.Ping})
	}

	agentClient := agent.NewClient(cfg.Agent.BaseURL, cfg.Agent.RequestTimeout, log)

	sessions := assistant.NewManager(func(userID string) *assistant.Session {
		return assistant.NewSession(agentClient, assistant.Options{
			UserID:             userID,
			FramePrefix:        cfg.Agent.FramePrefix,
			MaxRecommendations: cfg.Agent.MaxRecommendations,
			Turns:              turns,
			ActiveRooms:        activeRooms,
			Logger:             log,
		})
	}, cfg.Session.IdleTimeout, log)
	go sessions.Run(ctx)
	defer sessions.CloseAll()

	healthHandler := handler.NewHealthHandler(checks...)
	assistantHandler := handler.NewAssistantHandler(sessions, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Auth.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))

		r.Mount("/assistant", assistantHandler.Routes())
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
