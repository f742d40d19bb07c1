package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"support-chat/internal/config"
	"support-chat/internal/handlers"
	"support-chat/internal/logging"
	"support-chat/internal/metrics"
	"support-chat/internal/router"
	"support-chat/internal/services"
	"support-chat/internal/websocket"
)

func main() {
	// ──── Step 1: Load Configuration ────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintf(os.Stderr, "✗ logging setup failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Str("env", cfg.Env).Msg("🚀 Starting support chat relay...")

	// ──── Step 2: Metrics ────
	metrics.Register()

	// ──── Step 3: Initialize Upstream Provider ────
	provider, err := services.NewProvider(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("✗ provider initialization failed")
	}
	if c, ok := provider.(io.Closer); ok {
		defer c.Close()
	}
	log.Info().Str("provider", provider.Name()).Str("model", cfg.Model).Msg("✓ Upstream provider initialized")

	// ──── Step 4: Initialize Services & Handlers ────
	relayService := services.NewRelayService(provider, cfg.SystemPrompt)
	chatHandler := handlers.NewChatHandler(relayService)
	wsHub := websocket.NewHub(relayService, cfg.FrontendURL)

	// ──── Step 5: Start HTTP Server ────
	r := router.New(chatHandler, wsHub, cfg.FrontendURL)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.StreamWriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown
	idle := make(chan struct{})
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Shutting down...")
		wsHub.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown did not complete cleanly")
		}
		close(idle)
	}()

	log.Info().Msgf("✓ Support chat relay ready on http://localhost:%s", cfg.Port)
	log.Info().Msgf("  API: http://localhost:%s/api/chat", cfg.Port)
	log.Info().Msgf("  WS:  ws://localhost:%s/api/chat/ws", cfg.Port)

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
	<-idle
}
