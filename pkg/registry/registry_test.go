package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id     string
	mu     sync.Mutex
	sent   []any
	closed bool
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	conn := &fakeConn{id: "alice"}

	displaced := r.Register("alice", conn)
	assert.Nil(t, displaced)

	got, ok := r.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, conn, got)
	assert.Equal(t, 1, r.Size())
}

func TestLookup_Unknown(t *testing.T) {
	r := New()

	_, ok := r.Lookup("nobody")
	assert.False(t, ok)
}

func TestRegister_LastWriterWins(t *testing.T) {
	r := New()
	first := &fakeConn{id: "alice"}
	second := &fakeConn{id: "alice"}

	r.Register("alice", first)
	displaced := r.Register("alice", second)

	require.NotNil(t, displaced)
	assert.Same(t, first, displaced)

	got, ok := r.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, r.Size())
}

func TestRegister_SameConnTwice(t *testing.T) {
	r := New()
	conn := &fakeConn{id: "alice"}

	r.Register("alice", conn)
	displaced := r.Register("alice", conn)
	assert.Nil(t, displaced)
}

func TestUnregister_RemovesOwnBinding(t *testing.T) {
	r := New()
	conn := &fakeConn{id: "alice"}
	r.Register("alice", conn)

	assert.True(t, r.Unregister("alice", conn))
	_, ok := r.Lookup("alice")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Size())
}

// TestUnregister_StaleIsNoop covers the reconnect race: the old
// connection's teardown runs after the new connection has already
// registered, and must not evict it.
func TestUnregister_StaleIsNoop(t *testing.T) {
	r := New()
	old := &fakeConn{id: "alice"}
	replacement := &fakeConn{id: "alice"}

	r.Register("alice", old)
	r.Register("alice", replacement)

	assert.False(t, r.Unregister("alice", old))

	got, ok := r.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, replacement, got)
}

func TestRange(t *testing.T) {
	r := New()
	r.Register("alice", &fakeConn{id: "alice"})
	r.Register("bob", &fakeConn{id: "bob"})

	seen := map[string]bool{}
	r.Range(func(identity string, conn Conn) bool {
		seen[identity] = true
		return true
	})
	assert.Equal(t, map[string]bool{"alice": true, "bob": true}, seen)
}

// TestConcurrentChurn hammers register/unregister from many goroutines;
// run with -race.
func TestConcurrentChurn(t *testing.T) {
	r := New()

	const workers = 16
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			identity := fmt.Sprintf("user-%d", w%4)
			for i := 0; i < 100; i++ {
				conn := &fakeConn{id: identity}
				r.Register(identity, conn)
				r.Lookup(identity)
				r.Unregister(identity, conn)
			}
		}(w)
	}
	wg.Wait()

	// Every binding left behind must be a connection some goroutine
	// registered last for that identity; just check the map is bounded.
	assert.LessOrEqual(t, r.Size(), 4)
}
