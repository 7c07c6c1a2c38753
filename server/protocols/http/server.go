package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gear6io/lattice/pkg/errors"
	"github.com/gear6io/lattice/server/catalog/cattypes"
	"github.com/gear6io/lattice/server/config"
	"github.com/gear6io/lattice/server/cube"
	"github.com/gear6io/lattice/server/metastore"
)

// Server is the admin HTTP API. It exposes read-only views of the cube
// metadata; every mutation goes through the CLI or embeds the metastore
// directly.
type Server struct {
	config *config.Config
	meta   *metastore.Metastore
	logger zerolog.Logger
	server *http.Server
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *config.Config, meta *metastore.Metastore, logger zerolog.Logger) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		config: cfg,
		meta:   meta,
		logger: logger.With().Str("component", "http-server").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	if !s.config.IsHTTPServerEnabled() {
		s.logger.Info().Msg("HTTP server is disabled")
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.config.GetHTTPAddress(), s.config.GetHTTPPort())
	s.logger.Info().Str("address", addr).Msg("Starting HTTP server")

	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	// Start server in goroutine
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	s.logger.Info().Msg("HTTP server started successfully")
	return nil
}

// Handler builds the route table. Split out from Start so tests can drive
// the handlers without a listening socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/cubes", s.handleListCubes)
	mux.HandleFunc("GET /api/v1/cubes/{name}", s.handleGetCube)
	mux.HandleFunc("GET /api/v1/facts", s.handleListFacts)
	mux.HandleFunc("GET /api/v1/facts/{name}", s.handleGetFact)
	mux.HandleFunc("GET /api/v1/facts/{name}/storages", s.handleFactStorages)
	mux.HandleFunc("GET /api/v1/dimensions", s.handleListDimensions)
	mux.HandleFunc("GET /api/v1/dimensions/{name}", s.handleGetDimension)

	return mux
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"server":    "lattice-http",
	})
}

// handleListCubes handles cube listing requests
func (s *Server) handleListCubes(w http.ResponseWriter, r *http.Request) {
	cubes, err := s.meta.AllCubes(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"cubes": cubes,
		"count": len(cubes),
	})
}

// handleGetCube handles single cube requests
func (s *Server) handleGetCube(w http.ResponseWriter, r *http.Request) {
	cb, err := s.meta.GetCube(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cb)
}

// handleListFacts handles fact listing requests, optionally filtered to the
// facts of one cube via the "cube" query parameter.
func (s *Server) handleListFacts(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{}

	var facts []*cube.FactTable
	var err error
	if cubeName := r.URL.Query().Get("cube"); cubeName != "" {
		facts, err = s.meta.AllFactTablesForCube(r.Context(), cubeName)
		response["cube"] = cubeName
	} else {
		facts, err = s.meta.AllFactTables(r.Context())
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	response["facts"] = facts
	response["count"] = len(facts)
	s.writeJSON(w, http.StatusOK, response)
}

// handleGetFact handles single fact requests
func (s *Server) handleGetFact(w http.ResponseWriter, r *http.Request) {
	fact, err := s.meta.GetFactTable(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fact)
}

// handleFactStorages lists the storages a fact is tracked on with their
// update periods.
func (s *Server) handleFactStorages(w http.ResponseWriter, r *http.Request) {
	fact, err := s.meta.GetFactTable(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"fact":     fact.Name,
		"storages": fact.StorageUpdatePeriods,
	})
}

// handleListDimensions handles dimension table listing requests
func (s *Server) handleListDimensions(w http.ResponseWriter, r *http.Request) {
	dims, err := s.meta.AllDimensionTables(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"dimensions": dims,
		"count":      len(dims),
	})
}

// handleGetDimension handles single dimension table requests
func (s *Server) handleGetDimension(w http.ResponseWriter, r *http.Request) {
	dim, err := s.meta.GetDimensionTable(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, dim)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError maps error codes to HTTP statuses: absent entities are 404,
// type mismatches 409, everything else 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsCode(err, cattypes.ErrTableNotFound):
		status = http.StatusNotFound
	case errors.IsCode(err, metastore.ErrWrongTableType):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("Request failed")
	}
	s.writeJSON(w, status, map[string]interface{}{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping HTTP server")

	s.cancel()

	if s.server != nil {
		// Create a context with timeout for graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("Error during HTTP server shutdown")
		}
	}

	// Wait for all goroutines to finish
	s.wg.Wait()

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

// GetStatus returns server status
func (s *Server) GetStatus() map[string]interface{} {
	return map[string]interface{}{
		"enabled": s.config.IsHTTPServerEnabled(),
		"address": s.config.GetHTTPAddress(),
		"port":    s.config.GetHTTPPort(),
	}
}
