package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gear6io/lattice/server"
	"github.com/gear6io/lattice/server/config"
)

func main() {
	// Load server configuration first
	cfg, err := config.LoadConfig("lattice-server.yml")
	usingDefaults := err != nil
	if usingDefaults {
		// Fall back to defaults when no config file is present
		cfg = config.LoadDefaultConfig()
	}

	// Initialize logger with configuration
	logger, err := config.SetupLogger(cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to setup logger: %v", err))
	}

	if usingDefaults {
		logger.Info().Msg("Using default configuration")
	}

	// Create server instance
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create server")
		os.Exit(1)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info().Msg("Shutting down cube metadata server...")
		cancel()
	}()

	// Start server
	logger.Info().Msg("Starting cube metadata server...")
	if err := srv.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
		os.Exit(1)
	}

	// Wait for shutdown signal
	<-ctx.Done()

	// Graceful shutdown
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}

	logger.Info().Msg("Server stopped gracefully")
}
