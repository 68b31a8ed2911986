package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/squawkhq/squawk/pkg/directory"
	storetesting "github.com/squawkhq/squawk/pkg/directory/testing"
)

func TestBadgerStore(t *testing.T) {
	suite := storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) directory.Store {
			store, err := New(context.Background(), Config{DBPath: t.TempDir()})
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
	}
	suite.Run(t)
}

// TestBadgerStore_Reopen verifies rows and insertion order survive a
// close and reopen of the same database directory.
func TestBadgerStore_Reopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := New(ctx, Config{DBPath: dir})
	require.NoError(t, err)

	require.NoError(t, store.Append(ctx, "rows", directory.Record{"n": "0"}))
	require.NoError(t, store.Append(ctx, "rows", directory.Record{"n": "1"}))
	require.NoError(t, store.Close())

	store, err = New(ctx, Config{DBPath: dir})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Append(ctx, "rows", directory.Record{"n": "2"}))

	records, err := store.GetAll(ctx, "rows")
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, rec := range records {
		require.Equal(t, string(rune('0'+i)), rec["n"])
	}
}
