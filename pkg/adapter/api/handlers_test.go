package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squawkhq/squawk/pkg/directory"
	"github.com/squawkhq/squawk/pkg/directory/memory"
	"github.com/squawkhq/squawk/pkg/registry"
)

func testAdapter(t *testing.T) (*Adapter, http.Handler) {
	store := memory.New()
	t.Cleanup(func() { _ = store.Close() })

	adapter := New(Config{
		Port:            0,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		IdleTimeout:     time.Second,
		RequestTimeout:  time.Second,
		ShutdownTimeout: time.Second,
	}, directory.NewService(store), registry.New(), nil)

	return adapter, adapter.routes()
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestEnsureUser_RoundTrip(t *testing.T) {
	_, handler := testAdapter(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/users", map[string]string{
		"userId":   "alice",
		"name":     "Alice",
		"email":    "alice@example.com",
		"imageUrl": "https://img/alice",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var user directory.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "alice", user.Identity)
	assert.Equal(t, "Alice", user.Name)
	assert.False(t, user.CreatedAt.IsZero())
}

func TestEnsureUser_MissingUserID(t *testing.T) {
	_, handler := testAdapter(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/users", map[string]string{"name": "Nobody"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["message"])
}

func TestEnsureUser_InvalidJSON(t *testing.T) {
	_, handler := testAdapter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddContact_DuplicateReturnsSameProjection(t *testing.T) {
	_, handler := testAdapter(t)

	doJSON(t, handler, http.MethodPost, "/api/users", map[string]string{"userId": "alice"})
	doJSON(t, handler, http.MethodPost, "/api/users", map[string]string{
		"userId": "bob", "name": "Bob", "email": "bob@example.com",
	})

	body := map[string]any{
		"userId":  "alice",
		"contact": map[string]string{"userId": "bob"},
	}

	first := doJSON(t, handler, http.MethodPost, "/api/contacts", body)
	require.Equal(t, http.StatusOK, first.Code)
	second := doJSON(t, handler, http.MethodPost, "/api/contacts", body)
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	list := doJSON(t, handler, http.MethodGet, "/api/contacts/alice", nil)
	require.Equal(t, http.StatusOK, list.Code)
	var contacts []directory.Contact
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &contacts))
	assert.Len(t, contacts, 1)
}

func TestAddContact_ByEmail(t *testing.T) {
	_, handler := testAdapter(t)

	doJSON(t, handler, http.MethodPost, "/api/users", map[string]string{"userId": "alice"})

	rec := doJSON(t, handler, http.MethodPost, "/api/contacts", map[string]any{
		"userId":  "alice",
		"contact": map[string]string{"name": "Carol", "email": "Carol@Example.com"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var contact directory.Contact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &contact))
	assert.Equal(t, "email:carol@example.com", contact.Identity)
}

func TestAddContact_MissingContact(t *testing.T) {
	_, handler := testAdapter(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/contacts", map[string]any{
		"userId":  "alice",
		"contact": map[string]string{"name": "Nameless"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListContacts_UnknownOwner(t *testing.T) {
	_, handler := testAdapter(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/contacts/nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListContacts_OrderPreserved(t *testing.T) {
	_, handler := testAdapter(t)

	doJSON(t, handler, http.MethodPost, "/api/users", map[string]string{"userId": "alice"})
	for _, id := range []string{"bob", "carol", "dave"} {
		doJSON(t, handler, http.MethodPost, "/api/contacts", map[string]any{
			"userId":  "alice",
			"contact": map[string]string{"userId": id},
		})
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/contacts/alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var contacts []directory.Contact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &contacts))
	require.Len(t, contacts, 3)
	assert.Equal(t, "bob", contacts[0].Identity)
	assert.Equal(t, "carol", contacts[1].Identity)
	assert.Equal(t, "dave", contacts[2].Identity)
}

// stubConn satisfies registry.Conn for health endpoint tests.
type stubConn struct{ id string }

func (c stubConn) ID() string { return c.id }

func (c stubConn) Send(any) error { return nil }

func (c stubConn) Close() error { return nil }

func TestHealthz_OK(t *testing.T) {
	adapter, handler := testAdapter(t)
	adapter.registry.Register("bob", stubConn{id: "c1"})
	adapter.registry.Register("alice", stubConn{id: "c2"})

	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health struct {
		Status      string   `json:"status"`
		Connections int      `json:"connections"`
		Identities  []string `json:"identities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 2, health.Connections)
	assert.Equal(t, []string{"alice", "bob"}, health.Identities)
}

// failingStore simulates an unreachable backend.
type failingStore struct{}

var errDown = errors.New("backend down")

func (failingStore) GetAll(context.Context, string) ([]directory.Record, error) {
	return nil, errDown
}
func (failingStore) Append(context.Context, string, directory.Record) error { return errDown }
func (failingStore) Find(context.Context, string, directory.Record) (directory.Record, error) {
	return nil, errDown
}
func (failingStore) FindAll(context.Context, string, directory.Record) ([]directory.Record, error) {
	return nil, errDown
}
func (failingStore) Update(context.Context, string, directory.Record, directory.Record) (bool, error) {
	return false, errDown
}
func (failingStore) Healthcheck(context.Context) error { return errDown }
func (failingStore) Close() error                      { return nil }

func TestDirectoryFailure_Returns503(t *testing.T) {
	adapter := New(Config{
		Port:            0,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		IdleTimeout:     time.Second,
		RequestTimeout:  time.Second,
		ShutdownTimeout: time.Second,
	}, directory.NewService(failingStore{}), nil, nil)
	handler := adapter.routes()

	rec := doJSON(t, handler, http.MethodPost, "/api/users", map[string]string{"userId": "alice"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	health := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, health.Code)
}
