// Package server orchestrates the lifecycle of Squawk's protocol
// adapters: the websocket relay and the directory HTTP API.
package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/squawkhq/squawk/internal/logger"
	"github.com/squawkhq/squawk/pkg/adapter"
)

// Server manages the lifecycle of multiple protocol adapters.
//
// Lifecycle:
//  1. Creation: New()
//  2. Registration: AddAdapter() for each protocol
//  3. Startup: Serve() starts all adapters concurrently
//  4. Shutdown: context cancellation triggers graceful shutdown
//
// Shutdown behavior:
// When the context is cancelled or an adapter fails, all adapters receive
// Stop() calls in reverse registration order and Serve() waits for every
// adapter goroutine to finish before returning.
//
// Thread safety:
// AddAdapter() may be called concurrently before Serve(). Serve() must
// only be called once.
//
// Example usage:
//
//	srv := server.New()
//	srv.AddAdapter(relay.New(relayCfg, reg, relayMetrics))
//	srv.AddAdapter(api.New(apiCfg, service, reg, apiMetrics))
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil && err != context.Canceled {
//	    log.Fatal(err)
//	}
type Server struct {
	// adapters contains all registered protocol adapters
	adapters []adapter.Adapter

	// stopTimeout bounds each adapter's Stop() call during shutdown
	stopTimeout time.Duration

	// mu protects the adapters slice and served flag
	mu sync.RWMutex

	// serveOnce ensures Serve() only runs once
	serveOnce sync.Once

	served bool
}

// New creates an empty Server. Call AddAdapter() to register protocols,
// then Serve() to start them.
func New() *Server {
	return &Server{
		adapters:    make([]adapter.Adapter, 0, 2),
		stopTimeout: 30 * time.Second,
	}
}

// AddAdapter registers a protocol adapter.
//
// Each adapter must use a distinct protocol name and listen port;
// conflicts return an error. Panics if called after Serve() or with a
// nil adapter (programmer errors).
func (s *Server) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add adapter after Serve() has been called")
	}

	protocol := a.Protocol()
	port := a.Port()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	s.adapters = append(s.adapters, a)
	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// Serve starts all registered adapters and blocks until the context is
// cancelled or an adapter fails.
//
// Returns nil or context.Canceled on graceful shutdown, an error when an
// adapter fails to start or fails while serving. Panics when called more
// than once.
func (s *Server) Serve(ctx context.Context) error {
	var (
		err error
		ran bool
	)
	s.serveOnce.Do(func() {
		ran = true
		s.mu.Lock()
		s.served = true
		s.mu.Unlock()
		err = s.serve(ctx)
	})
	if !ran {
		panic("Serve() has already been called on this server instance")
	}
	return err
}

// adapterError pairs an adapter protocol name with its error.
type adapterError struct {
	protocol string
	err      error
}

func (s *Server) serve(ctx context.Context) error {
	s.mu.RLock()
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.RUnlock()

	if len(adapters) == 0 {
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}

	logger.Info("Starting server with %d adapter(s)", len(adapters))

	// Buffered so adapter goroutines never leak when several fail at once.
	errChan := make(chan adapterError, len(adapters))
	var wg sync.WaitGroup

	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, a.Port())

			if err := a.Serve(ctx); err != nil {
				// context.Canceled is the expected shutdown result.
				if err != context.Canceled && ctx.Err() == nil {
					logger.Error("%s adapter failed: %v", protocol, err)
					errChan <- adapterError{protocol: protocol, err: err}
				} else {
					logger.Debug("%s adapter stopped gracefully", protocol)
				}
			} else {
				logger.Info("%s adapter stopped", protocol)
			}
		}(adp)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		s.stopAllAdapters(adapters)
		shutdownErr = ctx.Err()

	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed: %v - stopping all adapters",
			adapterErr.protocol, adapterErr.err)
		s.stopAllAdapters(adapters)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	logger.Info("Server stopped")
	return shutdownErr
}

// stopAllAdapters initiates graceful shutdown in reverse registration
// order, so the outward API stops before the relay it reports on.
func (s *Server) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		protocol := adp.Protocol()

		logger.Debug("Stopping %s adapter (port %d)", protocol, adp.Port())
		if err := adp.Stop(ctx); err != nil && err != context.Canceled {
			logger.Error("Error stopping %s adapter: %v", protocol, err)
		}
	}
}

// Adapters returns a snapshot of the registered adapters.
func (s *Server) Adapters() []adapter.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
