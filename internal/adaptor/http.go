// Package adaptor binds a controller or handler to one transport at startup:
// an HTTP server or an object exported on D-Bus.
package adaptor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/eosched/internal/config"
	"github.com/me/eosched/internal/dispatch"
	"github.com/me/eosched/pkg/model"
)

// shutdownTimeout bounds the graceful shutdown of the HTTP server.
const shutdownTimeout = 5 * time.Second

// HTTPAdaptor serves one controller under /{name}/.
type HTTPAdaptor struct {
	name      string
	addr      string
	router    chi.Router
	server    *http.Server
	startTime time.Time
	logger    *slog.Logger
}

// NewHTTPAdaptor creates an adaptor listening on the address configured
// under http_servers.{name}. A missing or invalid address is a ConfigError.
func NewHTTPAdaptor(cfg config.Config, name string, c dispatch.Controller, logger *slog.Logger) (*HTTPAdaptor, error) {
	addr, err := cfg.ListenAddr(name)
	if err != nil {
		return nil, err
	}

	a := &HTTPAdaptor{
		name:      name,
		addr:      addr,
		router:    chi.NewRouter(),
		startTime: time.Now(),
		logger:    logger.With("component", "http-adaptor", "name", name),
	}

	routes := dispatch.NewRouter(logger)
	routes.Handle("/"+name+"/", c)

	r := a.router
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(a.logger))
	r.Get("/health", a.handleHealth)
	r.Handle("/*", routes)

	a.server = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// Addr returns the configured listen address.
func (a *HTTPAdaptor) Addr() string {
	return a.addr
}

// Handler returns the http.Handler for this adaptor.
func (a *HTTPAdaptor) Handler() http.Handler {
	return a.router
}

// ListenAndServe binds the listen address and serves until ctx is cancelled,
// then shuts down gracefully. A bind failure is a ConfigError.
func (a *HTTPAdaptor) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.addr)
	if err != nil {
		return &model.ConfigError{Key: "http_servers." + a.name, Err: err}
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (a *HTTPAdaptor) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "addr", ln.Addr().String())
		errCh <- a.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.logger.Info("server stopped")
	return nil
}

// Shutdown gracefully stops the server.
func (a *HTTPAdaptor) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

type healthResponse struct {
	Status    string `json:"status"`
	Name      string `json:"name"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

func (a *HTTPAdaptor) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(healthResponse{
		Status:    "healthy",
		Name:      a.name,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(a.startTime).Round(time.Second).String(),
	})
}
