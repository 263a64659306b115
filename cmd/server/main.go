// Package main is the entry point for the portfolio risk engine service.
// It values portfolios against live quotes, scores their risk, runs stress
// scenarios and produces crisis-adjusted allocations over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finvoice/riskengine/internal/config"
	"github.com/finvoice/riskengine/internal/di"
	"github.com/finvoice/riskengine/internal/server"
	"github.com/finvoice/riskengine/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "riskengine",
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("base_currency", cfg.BaseCurrency).Msg("Starting risk engine")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, _, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// Start waits up to 30s for the first consumer session. The consume loop
	// outlives startCtx and stops in container.Close.
	if container.KafkaFeed != nil {
		startCtx, startCancel := context.WithTimeout(ctx, 30*time.Second)
		if err := container.KafkaFeed.Start(startCtx); err != nil {
			log.Warn().Err(err).Msg("Crisis feed consumer not ready yet, continuing while it retries")
		}
		startCancel()
	}

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Databases: container.Databases(),
		Events:    container.CrisisFeed,
		Providers: container.QuoteService.Providers(),
		Portfolio: container.PortfolioHTTP,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	container.Scheduler.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
