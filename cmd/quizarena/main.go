package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizarena/internal/game"
	"github.com/mcdev12/quizarena/internal/gateway"
	"github.com/mcdev12/quizarena/internal/quiz"
	"github.com/mcdev12/quizarena/internal/registry"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	config, err := loadConfig(getEnv("QUIZ_CONFIG", ""))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Preloaded quiz content for create-by-name
	quizzes := make(map[string]*quiz.Quiz)
	if config.Content.Dir != "" {
		quizzes, err = quiz.LoadDir(config.Content.Dir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", config.Content.Dir).Msg("failed to load quiz content")
		}
		log.Info().Int("quizzes", len(quizzes)).Str("dir", config.Content.Dir).Msg("quiz content loaded")
	}

	// Optional NATS event relay
	var relay *gateway.Relay
	if config.NATS.URL != "" {
		relayConfig := gateway.DefaultRelayConfig()
		relayConfig.URL = config.NATS.URL
		relayConfig.SubjectPrefix = config.NATS.SubjectPrefix
		relay, err = gateway.NewRelay(relayConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect game event relay")
		}
	}

	// Wire up: connection manager → registry → gateway service
	manager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig(), relay)

	reg := registry.New(registry.Config{
		Clock:       clockwork.NewRealClock(),
		Broadcaster: manager,
		Game: game.Config{
			AutoAdvance: config.Game.AutoAdvance,
			RevealDwell: config.revealDwell(),
			EndGrace:    config.endGrace(),
		},
	})

	gatewayService := gateway.NewService(manager, reg, quizzes, relay)

	mux := http.NewServeMux()
	gatewayService.RegisterRoutes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	server := &http.Server{
		Addr:        config.Server.Addr,
		Handler:     c.Handler(mux),
		IdleTimeout: 120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go gatewayService.Start(ctx)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	reg.Close()
	cancel()

	log.Info().Msg("quizarena shutdown complete")
}
