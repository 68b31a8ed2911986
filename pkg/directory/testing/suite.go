// Package testing provides a reusable contract test suite for
// directory.Store implementations. It tests the interface contract, not
// implementation details, so the same suite runs against the memory,
// Badger, and S3 backends.
package testing

import (
	"context"
	"testing"

	"github.com/squawkhq/squawk/pkg/directory"
)

// StoreTestSuite exercises the directory.Store contract.
type StoreTestSuite struct {
	// NewStore is a factory function that creates a fresh Store instance
	// for each test. This ensures test isolation.
	NewStore func(t *testing.T) directory.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(test *testing.T) {
	test.Run("GetAll", suite.RunGetAllTests)
	test.Run("Append", suite.RunAppendTests)
	test.Run("Find", suite.RunFindTests)
	test.Run("FindAll", suite.RunFindAllTests)
	test.Run("Update", suite.RunUpdateTests)
	test.Run("Healthcheck", suite.RunHealthcheckTests)
	test.Run("Concurrency", suite.RunConcurrencyTests)
}

func testContext(test *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	test.Cleanup(cancel)
	return ctx
}
