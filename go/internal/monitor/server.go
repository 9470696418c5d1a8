package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Handler returns the relay's HTTP surface. metricsHandler is mounted at
// /metrics when non-nil.
func (s *Service) Handler(metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/status", s.handleWebSocket)
	mux.HandleFunc("GET /api/status/active", s.handleActive)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	return h2c.NewHandler(c.Handler(mux), &http2.Server{})
}

// ListenAndServe runs the relay and its HTTP server until ctx is done.
func (s *Service) ListenAndServe(ctx context.Context, metricsHandler http.Handler) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(metricsHandler),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.Start(ctx)
	}()
	go func() {
		log.Info().Str("addr", server.Addr).Msg("monitor HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("monitor HTTP server shutdown failed")
	}
	return runErr
}

func (s *Service) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// the upgrader writes its own error response
	if err := s.connections.UpgradeConnection(w, r); err != nil {
		log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade failed")
	}
}

func (s *Service) handleActive(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Board()); err != nil {
		log.Error().Err(err).Msg("failed to encode active status")
	}
}
