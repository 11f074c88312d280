// package server exposes the sync engine over HTTP for UI polling
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/subnurb/mediaplace/internal/shared"
	"github.com/subnurb/mediaplace/internal/tasks"
)

// Server wraps the engine with a JSON API. Long-running operations
// (analyze, push, upload) run in the background; clients observe progress
// by polling the job snapshot.
type Server struct {
	engine *tasks.Engine
	logger *log.Logger
	router chi.Router
}

// NewServer creates a Server around the given engine.
func NewServer(engine *tasks.Engine, logger *log.Logger) *Server {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	s := &Server{
		engine: engine,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api/sync", func(r chi.Router) {
		r.Post("/", s.handleCreateJob)
		r.Get("/", s.handleListJobs)

		r.Route("/{jobID}", func(r chi.Router) {
			r.Get("/", s.handleGetJob)
			r.Post("/analyze", s.handleAnalyze)
			r.Post("/stop", s.handleStop)
			r.Post("/confirm-all", s.handleConfirmAll)
			r.Post("/push", s.handlePush)
			r.Get("/export", s.handleExport)
			r.Get("/log", s.handleLog)

			r.Route("/tracks/{trackID}", func(r chi.Router) {
				r.Post("/confirm", s.handleConfirm)
				r.Post("/unconfirm", s.handleUnconfirm)
				r.Post("/reject", s.handleReject)
				r.Post("/select", s.handleSelect)
				r.Post("/resolve-url", s.handleResolveURL)
				r.Post("/upload", s.handleUpload)
				r.Post("/skip", s.handleSkip)
			})
		})
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// writeJSON renders v as the response body with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps the engine's error taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, shared.ErrJobNotFound),
		errors.Is(err, shared.ErrTrackNotFound),
		errors.Is(err, shared.ErrPlaylistNotFound):
		status = http.StatusNotFound
	case errors.Is(err, shared.ErrNotResumable),
		errors.Is(err, shared.ErrAlreadyPushed):
		status = http.StatusConflict
	case errors.Is(err, shared.ErrResolution):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrAdapter),
		errors.Is(err, shared.ErrServiceUnavailable):
		status = http.StatusBadGateway
	}

	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decodeBody decodes a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body", shared.ErrValidation)
	}
	return nil
}
