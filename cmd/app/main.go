package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"app/internal/api/v1/router"
	"app/internal/config"
	"app/internal/logger"
	"app/internal/pubsub"
	"app/internal/service"

	"github.com/joho/godotenv"
)

func main() {
	logger := logger.New()

	// 1. Load configuration
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	ctx := context.Background()

	// 2. Resolve secrets from Secret Manager when configured
	if cfg.GoogleServiceAccountSecretName != "" || cfg.RTDNSharedSecretName != "" {
		sm, err := service.NewSecretManagerService(ctx, cfg)
		if err != nil {
			logger.Fatal().Msgf("Failed to create Secret Manager client: %v", err)
		}
		if err := service.LoadConfigSecrets(ctx, cfg, sm, logger); err != nil {
			logger.Fatal().Msgf("Failed to load secrets: %v", err)
		}
		sm.Close()
	}

	// The RTDN endpoint must never run without its shared secret; an empty
	// value would leave the push route open.
	if cfg.RTDNSharedSecret == "" {
		logger.Fatal().Msg("RTDN_SHARED_SECRET is not set (directly or via RTDN_SHARED_SECRET_NAME)")
	}

	// 3. Build router (and get DB pool + purchase service)
	r, pool, purchaseSvc, err := router.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Msgf("Failed to build router: %v", err)
	}
	defer pool.Close()

	// 4. Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 5. Start server in a goroutine
	go func() {
		logger.Info().Msgf("🚀 Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Msgf("Listen: %s\n", err)
		}
	}()

	// 6. Start the RTDN pull subscriber when configured
	subCtx, stopSubscriber := context.WithCancel(ctx)
	defer stopSubscriber()
	if cfg.RTDNSubscriptionID != "" {
		sub, err := pubsub.NewSubscriber(subCtx, cfg, purchaseSvc, logger)
		if err != nil {
			logger.Fatal().Msgf("Failed to create RTDN subscriber: %v", err)
		}
		defer sub.Close()
		go func() {
			if err := sub.Run(subCtx); err != nil {
				logger.Error().Err(err).Msg("RTDN subscriber stopped")
			}
		}()
	}

	// 7. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutdown signal received, exiting...")
	stopSubscriber()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Msgf("Server forced to shutdown: %v", err)
	}
	logger.Info().Msg("Server shut down gracefully")
}
