package memory

import (
	"testing"

	"github.com/squawkhq/squawk/pkg/directory"
	storetesting "github.com/squawkhq/squawk/pkg/directory/testing"
)

func TestMemoryStore(t *testing.T) {
	suite := storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) directory.Store {
			store := New()
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
	}
	suite.Run(t)
}
