// Package api exposes the directory over HTTP: user sign-in upserts,
// contact management, health and metrics endpoints. It is a thin
// transport over the directory service; all domain rules live there.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/squawkhq/squawk/internal/logger"
	"github.com/squawkhq/squawk/pkg/directory"
	"github.com/squawkhq/squawk/pkg/metrics"
	"github.com/squawkhq/squawk/pkg/registry"
)

// Config holds the HTTP API adapter configuration.
type Config struct {
	// Port is the TCP port the HTTP server listens on.
	Port int `mapstructure:"port" validate:"required,gt=0,lte=65535"`

	// ReadTimeout bounds reading a full request, header and body.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"required,gt=0"`

	// WriteTimeout bounds writing a full response.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"required,gt=0"`

	// IdleTimeout bounds keep-alive idle time.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"required,gt=0"`

	// RequestTimeout bounds directory work done for one request. Remote
	// store backends can be slow; this keeps handlers from hanging.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required,gt=0"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// Adapter is the directory HTTP API server.
type Adapter struct {
	config   Config
	service  *directory.Service
	registry *registry.Registry
	metrics  metrics.APIMetrics

	httpServer *http.Server
}

// New creates an HTTP API adapter. A nil apiMetrics falls back to a
// no-op implementation. The registry is used only for the health
// endpoint's connection count diagnostic and may be nil.
func New(config Config, service *directory.Service, reg *registry.Registry, apiMetrics metrics.APIMetrics) *Adapter {
	if apiMetrics == nil {
		apiMetrics = metrics.NewAPIMetrics()
	}
	return &Adapter{
		config:   config,
		service:  service,
		registry: reg,
		metrics:  apiMetrics,
	}
}

// routes builds the request mux. Split out so tests can drive the
// handlers without a listener.
func (a *Adapter) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/users", a.instrument("/api/users", a.handleEnsureUser))
	mux.HandleFunc("POST /api/contacts", a.instrument("/api/contacts", a.handleAddContact))
	mux.HandleFunc("GET /api/contacts/{userId}", a.instrument("/api/contacts/{userId}", a.handleListContacts))
	mux.HandleFunc("GET /healthz", a.instrument("/healthz", a.handleHealthz))

	if metrics.IsEnabled() {
		mux.Handle("GET /metrics", promhttp.HandlerFor(
			metrics.GetRegistry(),
			promhttp.HandlerOpts{},
		))
	}
	return mux
}

// Serve starts the HTTP server and blocks until the context is cancelled
// or an unrecoverable error occurs.
func (a *Adapter) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", a.config.Port))
	if err != nil {
		return fmt.Errorf("failed to create API listener on port %d: %w", a.config.Port, err)
	}

	a.httpServer = &http.Server{
		Handler:      a.routes(),
		ReadTimeout:  a.config.ReadTimeout,
		WriteTimeout: a.config.WriteTimeout,
		IdleTimeout:  a.config.IdleTimeout,
	}

	logger.Info("HTTP API listening on port %d", a.config.Port)

	go func() {
		<-ctx.Done()
		logger.Info("HTTP API shutdown signal received: %v", ctx.Err())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
		defer cancel()
		_ = a.Stop(shutdownCtx)
	}()

	err = a.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("HTTP API shutdown complete")
		return nil
	}
	return fmt.Errorf("API server failed: %w", err)
}

// Stop drains in-flight requests and closes the listener. Safe to call
// multiple times and concurrently with Serve().
func (a *Adapter) Stop(ctx context.Context) error {
	if a.httpServer == nil {
		return nil
	}
	if err := a.httpServer.Shutdown(ctx); err != nil {
		// Deadline hit; force-close what remains.
		_ = a.httpServer.Close()
		return err
	}
	return nil
}

// Protocol returns the adapter name for logging.
func (a *Adapter) Protocol() string {
	return "HTTP API"
}

// Port returns the configured listen port.
func (a *Adapter) Port() int {
	return a.config.Port
}
