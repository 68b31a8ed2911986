package directory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squawkhq/squawk/pkg/directory"
	"github.com/squawkhq/squawk/pkg/directory/memory"
)

func newService(t *testing.T) (*directory.Service, directory.Store) {
	store := memory.New()
	t.Cleanup(func() { _ = store.Close() })
	return directory.NewService(store), store
}

func TestEnsureUser_CreatesOnFirstSight(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	user, err := svc.EnsureUser(ctx, "alice", "Alice", "alice@example.com", "https://img/alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Identity)
	assert.Equal(t, "Alice", user.Name)
	assert.False(t, user.CreatedAt.IsZero())

	rows, err := store.GetAll(ctx, directory.TableUsers)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestEnsureUser_Idempotent(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	first, err := svc.EnsureUser(ctx, "alice", "Alice", "alice@example.com", "")
	require.NoError(t, err)

	second, err := svc.EnsureUser(ctx, "alice", "Alice", "alice@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	rows, err := store.GetAll(ctx, directory.TableUsers)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestEnsureUser_RefreshesChangedFields(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.EnsureUser(ctx, "alice", "Alice", "old@example.com", "")
	require.NoError(t, err)

	user, err := svc.EnsureUser(ctx, "alice", "Alice Smith", "new@example.com", "https://img/alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", user.Name)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, "https://img/alice", user.ImageRef)

	again, err := svc.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", again.Name)
	assert.Equal(t, "new@example.com", again.Email)
}

func TestEnsureUser_EmptyInputNeverClobbers(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.EnsureUser(ctx, "alice", "Alice", "alice@example.com", "https://img/alice")
	require.NoError(t, err)

	user, err := svc.EnsureUser(ctx, "alice", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "https://img/alice", user.ImageRef)
}

func TestEnsureUser_RequiresIdentity(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.EnsureUser(context.Background(), "", "Alice", "", "")
	require.Error(t, err)
}

func TestGetUser_NotFound(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.GetUser(context.Background(), "nobody")
	require.Error(t, err)
	assert.True(t, directory.IsNotFound(err))
}

func TestAddContact_ByIdentity(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.EnsureUser(ctx, "alice", "Alice", "alice@example.com", "")
	require.NoError(t, err)
	_, err = svc.EnsureUser(ctx, "bob", "Bob", "bob@example.com", "")
	require.NoError(t, err)

	contact, err := svc.AddContact(ctx, "alice", directory.ContactInfo{Identity: "bob"})
	require.NoError(t, err)
	assert.Equal(t, "bob", contact.Identity)
	assert.Equal(t, "Bob", contact.Name)
	assert.Equal(t, "bob@example.com", contact.Email)

	contacts, err := svc.ListContacts(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "bob", contacts[0].Identity)
}

func TestAddContact_ByEmailCreatesPlaceholder(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.EnsureUser(ctx, "alice", "Alice", "alice@example.com", "")
	require.NoError(t, err)

	contact, err := svc.AddContact(ctx, "alice", directory.ContactInfo{
		Name:  "Carol",
		Email: "Carol@Example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "email:carol@example.com", contact.Identity)
	assert.Equal(t, "Carol", contact.Name)

	// The placeholder is a real user row, addressable later when Carol
	// signs up under the same email key.
	placeholder, err := svc.GetUser(ctx, "email:carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Carol@Example.com", placeholder.Email)
}

func TestAddContact_Idempotent(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	_, err := svc.EnsureUser(ctx, "alice", "Alice", "", "")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.AddContact(ctx, "alice", directory.ContactInfo{Identity: "bob", Name: "Bob"})
		require.NoError(t, err)
	}

	edges, err := store.FindAll(ctx, directory.TableContacts, directory.Record{
		directory.FieldOwnerID: "alice",
	})
	require.NoError(t, err)
	assert.Len(t, edges, 1)
}

func TestAddContact_DirectedEdge(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.AddContact(ctx, "alice", directory.ContactInfo{Identity: "bob"})
	require.NoError(t, err)

	// The reverse direction is a separate edge.
	bobContacts, err := svc.ListContacts(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bobContacts)
}

func TestAddContact_RequiresIdentityOrEmail(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.AddContact(context.Background(), "alice", directory.ContactInfo{Name: "Nameless"})
	require.Error(t, err)
}

func TestListContacts_InsertionOrder(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for _, id := range []string{"bob", "carol", "dave"} {
		_, err := svc.AddContact(ctx, "alice", directory.ContactInfo{Identity: id})
		require.NoError(t, err)
	}

	contacts, err := svc.ListContacts(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, contacts, 3)
	assert.Equal(t, "bob", contacts[0].Identity)
	assert.Equal(t, "carol", contacts[1].Identity)
	assert.Equal(t, "dave", contacts[2].Identity)
}

func TestListContacts_JoinsRefreshedProfile(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.AddContact(ctx, "alice", directory.ContactInfo{Identity: "bob", Name: "Bob"})
	require.NoError(t, err)

	// Bob later updates his profile; listings pick up the new attributes
	// even though the edge snapshot still holds the old ones.
	_, err = svc.EnsureUser(ctx, "bob", "Robert", "bob@example.com", "https://img/bob")
	require.NoError(t, err)

	contacts, err := svc.ListContacts(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Robert", contacts[0].Name)
	assert.Equal(t, "bob@example.com", contacts[0].Email)
	assert.Equal(t, "https://img/bob", contacts[0].ImageRef)
}

func TestListContacts_EmptyForUnknownOwner(t *testing.T) {
	svc, _ := newService(t)

	contacts, err := svc.ListContacts(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, contacts)
}
