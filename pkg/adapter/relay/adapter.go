// Package relay implements the push-to-talk voice relay: a websocket
// server that binds authenticated identities to live connections and
// forwards audio frames point-to-point between them.
//
// The relay holds no durable state. Everything it knows lives in the
// connection registry and dies with the process, so it never touches the
// directory store and keeps working when the directory is down.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/squawkhq/squawk/internal/logger"
	"github.com/squawkhq/squawk/pkg/metrics"
	"github.com/squawkhq/squawk/pkg/registry"
)

// Config holds the relay adapter configuration.
type Config struct {
	// Port is the TCP port the websocket server listens on.
	Port int `mapstructure:"port" validate:"required,gt=0,lte=65535"`

	// Path is the websocket endpoint path (default "/ws").
	Path string `mapstructure:"path"`

	// MaxConnections limits concurrent websocket connections.
	// 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"gte=0"`

	// MaxMessageBytes limits the size of a single inbound frame.
	MaxMessageBytes int64 `mapstructure:"max_message_bytes" validate:"required,gt=0"`

	// SendBufferSize is the per-connection outbound queue length. A full
	// queue drops frames rather than blocking the sender.
	SendBufferSize int `mapstructure:"send_buffer_size" validate:"required,gt=0"`

	// WriteTimeout bounds a single websocket write.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"required,gt=0"`

	// PongTimeout is how long a connection may stay silent before it is
	// considered dead. Must exceed PingInterval.
	PongTimeout time.Duration `mapstructure:"pong_timeout" validate:"required,gt=0"`

	// PingInterval is the keepalive ping period.
	PingInterval time.Duration `mapstructure:"ping_interval" validate:"required,gt=0"`

	// ShutdownTimeout bounds graceful shutdown before connections are
	// force-closed.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// TrustClientFrom restores the legacy behavior of forwarding the
	// sender identity claimed inside the audio frame. When false (the
	// default) the forwarded sender is always the authenticated identity
	// and unauthenticated audio is dropped.
	TrustClientFrom bool `mapstructure:"trust_client_from"`
}

// Adapter is the websocket relay server.
//
// Shutdown flow mirrors the other adapters:
//  1. Context cancelled or Stop() called
//  2. Listener closed, no new connections
//  3. Live connections asked to close, waited on up to ShutdownTimeout
//  4. Remaining connections force-closed
//
// Thread safety: all methods are safe for concurrent use; shutdown uses
// sync.Once so Stop() may be called multiple times.
type Adapter struct {
	config   Config
	registry *registry.Registry
	metrics  metrics.RelayMetrics

	httpServer *http.Server
	upgrader   websocket.Upgrader

	// activeConns tracks running connection handlers for graceful shutdown.
	activeConns sync.WaitGroup

	// activeConnections maps connection id to *connection for forced closure.
	activeConnections sync.Map

	// connCount is the current number of open connections.
	connCount atomic.Int32

	// connSemaphore limits concurrent connections when MaxConnections > 0.
	connSemaphore chan struct{}

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// New creates a relay adapter. A nil relayMetrics falls back to a no-op
// implementation.
func New(config Config, reg *registry.Registry, relayMetrics metrics.RelayMetrics) *Adapter {
	if config.Path == "" {
		config.Path = "/ws"
	}
	if relayMetrics == nil {
		relayMetrics = metrics.NewRelayMetrics()
	}

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
	}

	return &Adapter{
		config:   config,
		registry: reg,
		metrics:  relayMetrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from app origins unknown at build
			// time; identity comes from the auth frame, not the origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		connSemaphore: connSemaphore,
		shutdown:      make(chan struct{}),
	}
}

// Serve starts the websocket server and blocks until the context is
// cancelled or an unrecoverable error occurs.
func (a *Adapter) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", a.config.Port))
	if err != nil {
		return fmt.Errorf("failed to create relay listener on port %d: %w", a.config.Port, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(a.config.Path, a.handleWebSocket)
	a.httpServer = &http.Server{Handler: mux}

	logger.Info("Relay listening on port %d (path %s)", a.config.Port, a.config.Path)
	logger.Debug("Relay config: max_connections=%d max_message_bytes=%d send_buffer=%d",
		a.config.MaxConnections, a.config.MaxMessageBytes, a.config.SendBufferSize)

	go func() {
		<-ctx.Done()
		logger.Info("Relay shutdown signal received: %v", ctx.Err())
		a.initiateShutdown()
	}()

	err = a.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return a.gracefulShutdown()
	}

	select {
	case <-a.shutdown:
		return a.gracefulShutdown()
	default:
		return fmt.Errorf("relay server failed: %w", err)
	}
}

// handleWebSocket upgrades one HTTP request and runs the connection until
// it closes. The handler goroutine is the connection's read loop.
func (a *Adapter) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if a.connSemaphore != nil {
		select {
		case a.connSemaphore <- struct{}{}:
		default:
			logger.Warn("Relay connection rejected: limit of %d reached", a.config.MaxConnections)
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}
	}

	ws, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if a.connSemaphore != nil {
			<-a.connSemaphore
		}
		logger.Debug("Relay upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	conn := newConnection(ws, a)

	a.activeConns.Add(1)
	a.activeConnections.Store(conn.id, conn)
	current := a.connCount.Add(1)
	a.metrics.RecordConnectionAccepted()
	a.metrics.SetActiveConnections(current)
	logger.Debug("Relay connection %s accepted from %s (active: %d)",
		conn.id, r.RemoteAddr, current)

	defer func() {
		a.activeConnections.Delete(conn.id)
		a.activeConns.Done()
		current := a.connCount.Add(-1)
		if a.connSemaphore != nil {
			<-a.connSemaphore
		}
		a.metrics.RecordConnectionClosed()
		a.metrics.SetActiveConnections(current)
		logger.Debug("Relay connection %s closed (active: %d)", conn.id, current)
	}()

	go conn.writePump()
	conn.readLoop(a.config.MaxMessageBytes)
}

// initiateShutdown stops accepting new connections and asks the live
// ones to close. Safe to call multiple times.
func (a *Adapter) initiateShutdown() {
	a.shutdownOnce.Do(func() {
		logger.Debug("Relay shutdown initiated")
		close(a.shutdown)

		if a.httpServer != nil {
			// Close (not Shutdown): websocket connections are hijacked,
			// so only the listener needs closing here. The connections
			// are drained separately below.
			if err := a.httpServer.Close(); err != nil {
				logger.Debug("Error closing relay listener: %v", err)
			}
		}

		a.activeConnections.Range(func(_, value any) bool {
			_ = value.(*connection).Close()
			return true
		})
	})
}

// gracefulShutdown waits for connection handlers to finish or force
// closes whatever remains after ShutdownTimeout.
func (a *Adapter) gracefulShutdown() error {
	active := a.connCount.Load()
	logger.Info("Relay graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		active, a.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		a.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Relay graceful shutdown complete: all connections closed")
		return nil
	case <-time.After(a.config.ShutdownTimeout):
		remaining := a.connCount.Load()
		logger.Warn("Relay shutdown timeout exceeded: %d connection(s) still active, forcing closure", remaining)
		a.forceCloseConnections()
		return fmt.Errorf("relay shutdown timeout: %d connections force-closed", remaining)
	}
}

// forceCloseConnections closes the underlying sockets of every tracked
// connection so stuck read loops fail immediately.
func (a *Adapter) forceCloseConnections() {
	closed := 0
	a.activeConnections.Range(func(_, value any) bool {
		conn := value.(*connection)
		// Bypass the graceful close; close the TCP socket directly.
		_ = conn.ws.UnderlyingConn().Close()
		closed++
		return true
	})
	if closed > 0 {
		logger.Info("Force-closed %d relay connection(s)", closed)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times and
// concurrently with Serve().
func (a *Adapter) Stop(ctx context.Context) error {
	a.initiateShutdown()

	done := make(chan struct{})
	go func() {
		a.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		a.forceCloseConnections()
		return ctx.Err()
	}
}

// Protocol returns the adapter name for logging.
func (a *Adapter) Protocol() string {
	return "Relay"
}

// Port returns the configured listen port.
func (a *Adapter) Port() int {
	return a.config.Port
}
