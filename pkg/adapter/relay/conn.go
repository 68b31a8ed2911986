package relay

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/squawkhq/squawk/internal/logger"
	"github.com/squawkhq/squawk/pkg/metrics"
	"github.com/squawkhq/squawk/pkg/registry"
)

var (
	// errSendBufferFull is returned by Send when the outbound queue is
	// full. Audio delivery is best-effort, so the caller drops the frame.
	errSendBufferFull = errors.New("send buffer full")

	// errConnClosed is returned by Send after the connection closed.
	errConnClosed = errors.New("connection closed")
)

// connection is one websocket client. It moves through three states:
// open (no identity yet), authenticated (identity bound in the registry)
// and closed. A single reader goroutine serializes inbound handling and a
// single writer goroutine serializes outbound frames, so the state fields
// only need a mutex for the cross-connection Send path.
type connection struct {
	id string
	ws *websocket.Conn

	reg        *registry.Registry
	metrics    metrics.RelayMetrics
	trustFrom  bool
	sendBuffer chan Envelope

	writeTimeout time.Duration
	pongTimeout  time.Duration
	pingInterval time.Duration

	// identityMu guards identity, which the read loop writes and Send
	// never touches; kept for Close callers inspecting state in logs.
	identityMu sync.Mutex
	identity   string

	closeOnce sync.Once
	done      chan struct{}
}

func newConnection(ws *websocket.Conn, a *Adapter) *connection {
	return &connection{
		id:           uuid.NewString(),
		ws:           ws,
		reg:          a.registry,
		metrics:      a.metrics,
		trustFrom:    a.config.TrustClientFrom,
		sendBuffer:   make(chan Envelope, a.config.SendBufferSize),
		writeTimeout: a.config.WriteTimeout,
		pongTimeout:  a.config.PongTimeout,
		pingInterval: a.config.PingInterval,
		done:         make(chan struct{}),
	}
}

// ID implements registry.Conn.
func (c *connection) ID() string {
	return c.id
}

// Send implements registry.Conn. It enqueues the envelope for the write
// pump without ever blocking on a slow peer; a full buffer means the
// frame is dropped by the caller.
func (c *connection) Send(v any) error {
	env, ok := v.(Envelope)
	if !ok {
		return errors.New("unsupported message type")
	}
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.sendBuffer <- env:
		return nil
	case <-c.done:
		return errConnClosed
	default:
		return errSendBufferFull
	}
}

// Close implements registry.Conn. Safe to call more than once; the
// websocket close unblocks the read loop, which runs the teardown.
func (c *connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

// currentIdentity returns the bound identity, or "" while unauthenticated.
func (c *connection) currentIdentity() string {
	c.identityMu.Lock()
	defer c.identityMu.Unlock()
	return c.identity
}

func (c *connection) setIdentity(identity string) {
	c.identityMu.Lock()
	c.identity = identity
	c.identityMu.Unlock()
}

// readLoop consumes inbound frames until the peer disconnects, the
// connection is closed, or a read error occurs. It runs on the HTTP
// handler goroutine; returning tears the connection down.
func (c *connection) readLoop(maxMessageBytes int64) {
	defer c.teardown()

	c.ws.SetReadLimit(maxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.pongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.pongTimeout))
	})

	for {
		var env Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("relay: connection %s read error: %v", c.id, err)
			}
			return
		}
		c.handle(env)
	}
}

// handle dispatches one inbound envelope. Unknown types are ignored;
// the protocol is forward-compatible by dropping what it does not know.
func (c *connection) handle(env Envelope) {
	switch env.Type {
	case TypeAuth:
		c.handleAuth(env)
	case TypeAudio:
		c.handleAudio(env)
	default:
		c.metrics.RecordFrameDropped("malformed")
		logger.Debug("relay: connection %s sent unknown message type %q", c.id, env.Type)
	}
}

// handleAuth binds (or re-binds) the connection to an identity. The
// newest registration for an identity always wins; the displaced
// connection stays open and may authenticate again under any identity.
func (c *connection) handleAuth(env Envelope) {
	identity := env.UserID
	if identity == "" {
		c.metrics.RecordAuth("rejected")
		logger.Debug("relay: connection %s sent auth without userId", c.id)
		return
	}

	// Re-auth under a different identity releases the old binding, but
	// only if this connection still owns it.
	if prev := c.currentIdentity(); prev != "" && prev != identity {
		c.reg.Unregister(prev, c)
	}

	c.setIdentity(identity)
	if displaced := c.reg.Register(identity, c); displaced != nil {
		c.metrics.RecordAuth("displaced")
		logger.Info("relay: identity %q moved from connection %s to %s",
			identity, displaced.ID(), c.id)
	} else {
		c.metrics.RecordAuth("ok")
		logger.Debug("relay: connection %s authenticated as %q", c.id, identity)
	}
	c.metrics.SetRegisteredIdentities(c.reg.Size())
}

// handleAudio forwards one audio frame to its recipient. Delivery is
// best-effort: an offline recipient, a full send buffer or a dead target
// connection all drop the frame without feedback to the sender.
func (c *connection) handleAudio(env Envelope) {
	from := c.currentIdentity()
	if c.trustFrom && env.From != "" {
		from = env.From
	}
	if from == "" {
		c.metrics.RecordFrameDropped("unauthenticated")
		logger.Debug("relay: connection %s sent audio before auth", c.id)
		return
	}
	if env.To == "" {
		c.metrics.RecordFrameDropped("malformed")
		return
	}

	target, ok := c.reg.Lookup(env.To)
	if !ok {
		c.metrics.RecordFrameDropped("offline")
		return
	}

	out := Envelope{Type: TypeAudio, From: from, Data: env.Data}
	if err := target.Send(out); err != nil {
		c.metrics.RecordFrameDropped("send_failed")
		logger.Debug("relay: dropping frame for %q: %v", env.To, err)
		return
	}
	c.metrics.RecordFrameForwarded(len(env.Data))
}

// writePump serializes all outbound traffic: queued envelopes and
// keepalive pings. It owns the websocket write side exclusively.
func (c *connection) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case env := <-c.sendBuffer:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteJSON(env); err != nil {
				logger.Debug("relay: connection %s write error: %v", c.id, err)
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			// Best effort close frame so well-behaved clients see a
			// clean shutdown instead of a dropped TCP connection.
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// teardown releases the registry binding and closes the socket. The
// compare-and-remove unregister means a connection that was already
// displaced by a newer login cannot evict its replacement.
func (c *connection) teardown() {
	if identity := c.currentIdentity(); identity != "" {
		if c.reg.Unregister(identity, c) {
			logger.Debug("relay: identity %q unbound from connection %s", identity, c.id)
		}
		c.metrics.SetRegisteredIdentities(c.reg.Size())
	}
	_ = c.Close()
}
