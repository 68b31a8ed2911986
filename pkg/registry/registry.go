// Package registry tracks which live connection currently speaks for each
// authenticated identity.
//
// The registry is the relay's routing table: one identity, one connection.
// When the same identity authenticates twice (app restart, network flap,
// second device) the newest registration wins, and the unregister of the
// superseded connection must not evict its replacement. Both rules fall
// out of sync.Map's atomic primitives without any registry-wide lock.
package registry

import "sync"

// Conn is the minimal connection surface the registry routes to. The
// relay's websocket connection implements it; tests substitute fakes.
type Conn interface {
	// ID returns a stable per-connection identifier, used only for
	// logging. It is not the authenticated identity.
	ID() string

	// Send enqueues a message for delivery. It must be safe for
	// concurrent use and must not block on a slow peer.
	Send(v any) error

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// Registry maps identities to their current connection.
//
// Thread safety: all methods may be called concurrently.
type Registry struct {
	conns sync.Map // identity -> Conn
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// Register binds identity to conn, displacing any previous binding.
// The displaced connection is returned so the caller can observe the
// handover; nil when the identity was unbound.
func (r *Registry) Register(identity string, conn Conn) Conn {
	prev, loaded := r.conns.Swap(identity, conn)
	if !loaded {
		return nil
	}
	old := prev.(Conn)
	if old == conn {
		return nil
	}
	return old
}

// Lookup returns the connection currently bound to identity.
func (r *Registry) Lookup(identity string) (Conn, bool) {
	v, ok := r.conns.Load(identity)
	if !ok {
		return nil, false
	}
	return v.(Conn), true
}

// Unregister removes the binding for identity only if conn still holds
// it. A stale unregister from a superseded connection leaves the current
// binding untouched. Reports whether the binding was removed.
func (r *Registry) Unregister(identity string, conn Conn) bool {
	return r.conns.CompareAndDelete(identity, conn)
}

// Size returns the number of bound identities. The count is a snapshot;
// concurrent churn may make it stale by the time it returns.
func (r *Registry) Size() int {
	n := 0
	r.conns.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Range calls fn for every binding until fn returns false.
func (r *Registry) Range(fn func(identity string, conn Conn) bool) {
	r.conns.Range(func(k, v any) bool {
		return fn(k.(string), v.(Conn))
	})
}
