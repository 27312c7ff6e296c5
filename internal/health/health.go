// Package health serves the liveness and status endpoints every long-running
// service exposes for Docker and Kubernetes probes.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// StatusFunc returns a JSON-encodable snapshot of the service state.
type StatusFunc func() any

// Router returns GET /health (plain "OK") and GET /status (the snapshot as
// JSON). A nil status omits /status.
func Router(status StatusFunc) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if status != nil {
		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(status()); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		})
	}
	return r
}

// Serve runs the health server on port until ctx is cancelled. An empty port
// disables it. Errors are logged, never fatal.
func Serve(ctx context.Context, port string, status StatusFunc, logger *slog.Logger) {
	if port == "" {
		return
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           Router(status),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("health server listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("health server failed", "error", err)
	}
}
