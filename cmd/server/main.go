package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/duychung-keytechx/speech-demo/internal/app"
	"github.com/duychung-keytechx/speech-demo/internal/config"
	"github.com/duychung-keytechx/speech-demo/internal/engine"
	googleengine "github.com/duychung-keytechx/speech-demo/internal/engine/google"
	"github.com/duychung-keytechx/speech-demo/internal/engine/mock"
	"github.com/duychung-keytechx/speech-demo/internal/events"
	apihttp "github.com/duychung-keytechx/speech-demo/internal/http"
	"github.com/duychung-keytechx/speech-demo/internal/observability"
	"github.com/duychung-keytechx/speech-demo/internal/session"
)

func main() {
	cfg := config.Load()
	application := app.New(cfg)
	if err := application.Start(); err != nil {
		application.Logger.Fatal().Err(err).Msg("Application start failed")
	}
	logger := application.Logger

	// The engine handle is constructed once at startup and injected
	// everywhere; a load failure leaves the process serving with
	// model_loaded=false rather than crashing.
	eng := buildEngine(cfg, application)

	engineCfg := engine.Config{
		ChunkSizeSec:  cfg.Engine.ChunkSizeSec,
		UnfixedChunks: cfg.Engine.UnfixedChunks,
		UnfixedTokens: cfg.Engine.UnfixedTokens,
		SampleRateHz:  cfg.Engine.SampleRateHz,
		LanguageCode:  cfg.Engine.LanguageCode,
	}

	registry := session.NewRegistry(eng, cfg.Session.TTL)
	if cfg.Session.SweepInterval > 0 {
		registry.StartSweeper(cfg.Session.SweepInterval)
	}

	publisher := events.New(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicPartial: cfg.Kafka.TopicPartial,
		TopicFinal:   cfg.Kafka.TopicFinal,
		Principal:    cfg.Service.Principal,
	})
	defer publisher.Close()

	controller := apihttp.NewController(eng, engineCfg, registry, publisher)

	obsServer := observability.NewServer(":" + cfg.Service.MetricsPort)
	obsServer.Start()

	server := &http.Server{
		Addr:        ":" + cfg.Service.HTTPPort,
		Handler:     apihttp.NewRouter(controller),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("Speech gateway listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown failed")
	}
	if err := obsServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Observability shutdown failed")
	}
	registry.Shutdown()
	application.Shutdown()
}

// buildEngine selects the engine implementation from configuration.
func buildEngine(cfg *config.Config, application *app.Application) engine.Engine {
	logger := application.Logger

	switch cfg.Engine.Provider {
	case "google":
		eng, err := googleengine.New(context.Background())
		if err != nil {
			logger.Error().Err(err).Msg("Google engine unavailable, serving without a model")
			return nil
		}
		logger.Info().Msg("Google engine loaded")
		return eng
	case "mock":
		logger.Info().Msg("Mock engine loaded")
		return mock.New()
	default:
		logger.Warn().Str("provider", cfg.Engine.Provider).Msg("Unknown engine provider, using mock")
		return mock.New()
	}
}
