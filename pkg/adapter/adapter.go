// Package adapter defines the lifecycle contract shared by Squawk's
// network-facing servers (the websocket relay and the directory HTTP
// API), so the orchestrator can start and stop them uniformly.
package adapter

import "context"

// Adapter represents a protocol-specific server that can be managed by
// the Squawk server.
//
// Lifecycle:
//  1. Creation: adapter is created with its configuration and
//     dependencies injected through the constructor.
//  2. Startup: Serve() starts the server and blocks until shutdown.
//  3. Shutdown: Stop() initiates graceful shutdown with a timeout.
//
// Thread safety:
// Implementations must be safe for concurrent use. Stop() may be called
// concurrently with Serve().
type Adapter interface {
	// Serve starts the server and blocks until the context is cancelled
	// or an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must initiate graceful
	// shutdown: stop accepting new connections, drain active ones with a
	// timeout, clean up, and return nil or context.Canceled.
	//
	// If Serve returns before context cancellation, the orchestrator
	// treats it as a fatal error and stops all other adapters.
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown.
	//
	// Implementations must be idempotent, safe to call concurrently with
	// Serve(), and must respect the context deadline, force-closing
	// whatever remains when it expires.
	Stop(ctx context.Context) error

	// Protocol returns the human-readable protocol name for logging.
	//
	// Examples: "Relay", "HTTP API"
	Protocol() string

	// Port returns the TCP port the adapter listens on.
	Port() int
}
