// Package main runs a development tour agent that speaks the agent REST and
// stream protocol. Replies come from Anthropic or OpenAI when a key is set
// and are scripted from the tour catalog otherwise.
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

	"github.com/capitalize-ai/tour-assistant/internal/agentdev"
	"github.com/capitalize-ai/tour-assistant/internal/config"
	"github.com/capitalize-ai/tour-assistant/internal/handler"
	"github.com/capitalize-ai/tour-assistant/internal/llm"
	"github.com/capitalize-ai/tour-assistant/internal/middleware"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(ctx, "tour-agent-dev", cfg.Tracing.Endpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	var llmClient llm.Client
	switch {
	case cfg.LLM.AnthropicAPIKey != "":
		llmClient, err = llm.NewClient(llm.ProviderAnthropic, cfg.LLM.AnthropicAPIKey)
	case cfg.LLM.OpenAIAPIKey != "":
		llmClient, err = llm.NewClient(llm.ProviderOpenAI, cfg.LLM.OpenAIAPIKey)
	}
	if err != nil {
		log.Warn("failed to create LLM client, using scripted replies", zap.Error(err))
	}
	provider := string(llm.ProviderScripted)
	if llmClient != nil {
		provider = llmClient.Name()
	}
	log.Info("starting development agent", zap.String("provider", provider))

	server := agentdev.NewServer(agentdev.NewStore(nil), agentdev.Options{
		FramePrefix: cfg.Agent.FramePrefix,
		LLM:         llmClient,
		Model:       cfg.LLM.Model,
		TokenDelay:  cfg.DevAgent.TokenDelay,
		Logger:      log,
	})
	healthHandler := handler.NewHealthHandler()

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/agent", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Auth.JWTSecret))
		r.Mount("/", server.Routes())
	})

	httpServer := &http.Server{
		Addr:        ":" + cfg.DevAgent.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		log.Info("agent listening", zap.String("port", cfg.DevAgent.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("agent forced to shutdown", zap.Error(err))
	}
}
