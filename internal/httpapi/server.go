// Package httpapi serves the debug surface (metrics, health, status) while a
// long-running probe is active.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/casaflow/relay-go/internal/metrics"
)

// StatusFunc supplies the payload for the /status endpoint.
type StatusFunc func() any

// Server is the debug HTTP server.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// New builds the debug server on addr. status may be nil.
func New(addr string, m *metrics.Metrics, status StatusFunc, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.Named("httpapi")

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if m != nil {
		r.Handle("/metrics", m.Handler())
	}
	if status != nil {
		r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, status())
		})
	}

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until Shutdown. It returns nil on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("debug server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
