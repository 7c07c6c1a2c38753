package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gear6io/lattice/server/catalog"
	"github.com/gear6io/lattice/server/config"
	"github.com/gear6io/lattice/server/metastore"
	"github.com/gear6io/lattice/server/protocols/http"
)

// Server wires the catalog store, the metastore and the admin HTTP API
// together and manages their lifecycle.
type Server struct {
	config     *config.Config
	logger     zerolog.Logger
	meta       *metastore.Metastore
	httpServer *http.Server
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	startTime  time.Time
}

// New creates a new server instance
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())

	// Create the catalog store backing the metastore
	store, err := catalog.NewStore(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create catalog store: %w", err)
	}

	// Create the metastore on top of the store
	meta := metastore.New(cfg, store, logger)

	// Create HTTP server
	httpServer, err := http.NewServer(cfg, meta, logger)
	if err != nil {
		cancel()
		_ = meta.Close()
		return nil, fmt.Errorf("failed to create HTTP server: %w", err)
	}

	return &Server{
		config:     cfg,
		logger:     logger.With().Str("component", "server").Logger(),
		meta:       meta,
		httpServer: httpServer,
		wg:         sync.WaitGroup{},
		ctx:        ctx,
		cancel:     cancel,
		startTime:  time.Now(),
	}, nil
}

// Metastore exposes the metastore for embedders such as the CLI's local mode.
func (s *Server) Metastore() *metastore.Metastore {
	return s.meta
}

// Start starts all protocol servers
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info().Msg("Starting Lattice server...")

	if s.config.IsHTTPServerEnabled() {
		s.logger.Info().Msg("Starting HTTP server")
		if err := s.httpServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		s.logger.Info().Msg("HTTP server started")
	}

	s.logger.Info().
		Str("catalog", s.config.GetCatalogType()).
		Bool("caching", s.config.CachingEnabled()).
		Bool("http_enabled", s.config.IsHTTPServerEnabled()).
		Str("http_address", s.config.GetHTTPAddress()).
		Int("http_port", s.config.GetHTTPPort()).
		Msg("All servers started")

	return nil
}

// Shutdown gracefully shuts down all servers and the metastore
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down server...")

	s.cancel()

	// Stop HTTP server first so no request races the closing metastore
	if s.httpServer != nil {
		if err := s.httpServer.Stop(); err != nil {
			s.logger.Error().Err(err).Msg("Error stopping HTTP server")
		}
	}

	if s.meta != nil {
		if err := s.meta.Shutdown(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Error shutting down metastore")
		}
	}

	// Wait for all servers to stop
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Graceful shutdown completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout, forcing close")
	}

	return nil
}

// GetUptime returns the server uptime
func (s *Server) GetUptime() time.Duration {
	return time.Since(s.startTime)
}

// GetStatus returns the server status
func (s *Server) GetStatus() map[string]interface{} {
	return map[string]interface{}{
		"uptime":       s.GetUptime().String(),
		"start_time":   s.startTime,
		"catalog":      s.config.GetCatalogType(),
		"http_enabled": s.config.IsHTTPServerEnabled(),
	}
}
