package testing

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squawkhq/squawk/pkg/directory"
)

func (suite *StoreTestSuite) RunGetAllTests(test *testing.T) {
	test.Run("Empty", suite.TestGetAll_Empty)
	test.Run("InsertionOrder", suite.TestGetAll_InsertionOrder)
	test.Run("Isolation", suite.TestGetAll_Isolation)
}

func (suite *StoreTestSuite) RunAppendTests(test *testing.T) {
	test.Run("MultipleTables", suite.TestAppend_MultipleTables)
	test.Run("DuplicateRows", suite.TestAppend_DuplicateRows)
}

func (suite *StoreTestSuite) RunFindTests(test *testing.T) {
	test.Run("FirstMatch", suite.TestFind_FirstMatch)
	test.Run("MultiField", suite.TestFind_MultiField)
	test.Run("NotFound", suite.TestFind_NotFound)
}

func (suite *StoreTestSuite) RunFindAllTests(test *testing.T) {
	test.Run("Filtered", suite.TestFindAll_Filtered)
	test.Run("NoMatches", suite.TestFindAll_NoMatches)
}

func (suite *StoreTestSuite) RunUpdateTests(test *testing.T) {
	test.Run("MergesPatch", suite.TestUpdate_MergesPatch)
	test.Run("FirstMatchOnly", suite.TestUpdate_FirstMatchOnly)
	test.Run("NoMatch", suite.TestUpdate_NoMatch)
	test.Run("PreservesOrder", suite.TestUpdate_PreservesOrder)
}

func (suite *StoreTestSuite) RunHealthcheckTests(test *testing.T) {
	test.Run("Healthy", suite.TestHealthcheck_Healthy)
}

func (suite *StoreTestSuite) RunConcurrencyTests(test *testing.T) {
	test.Run("ParallelAppends", suite.TestConcurrency_ParallelAppends)
}

// TestGetAll_Empty verifies that an unknown table reads as empty rather
// than erroring.
func (suite *StoreTestSuite) TestGetAll_Empty(test *testing.T) {
	store := suite.NewStore(test)
	ctx := testContext(test)

	records, err := store.GetAll(ctx, "nope")
	require.NoError(test, err)
	assert.Empty(test, records)
}

// TestGetAll_InsertionOrder verifies that GetAll returns records in the
// order they were appended.
func (suite *StoreTestSuite) TestGetAll_InsertionOrder(test *testing.T) {
	store := suite.NewStore(test)
	ctx := testContext(test)

	for i := 0; i < 5; i++ {
		err := store.Append(ctx, "rows", directory.Record{"n": fmt.Sprintf("%d", i)})
		require.NoError(test, err)
	}

	records, err := store.GetAll(ctx, "rows")
	require.NoError(test, err)
	require.Len(test, records, 5)
	for i, rec := range records {
		assert.Equal(test, fmt.Sprintf("%d", i), rec["n"])
	}
}

// TestGetAll_Isolation verifies that mutating a returned record does not
// change the stored row.
func (suite *StoreTestSuite) TestGetAll_Isolation(test *testing.T) {
	store := suite.NewStore(test)
	ctx := testContext(test)

	require.NoError(test, store.Append(ctx, "rows", directory.Record{"k": "v"}))

	first, err := store.GetAll(ctx, "rows")
	require.NoError(test, err)
	first[0]["k"] = "mutated"

	second, err := store.GetAll(ctx, "rows")
	require.NoError(test, err)
	assert.Equal(test, "v", second[0]["k"])
}

// TestAppend_MultipleTables verifies tables are independent namespaces.
func (suite *StoreTestSuite) TestAppend_MultipleTables(test *testing.T) {
	store := suite.NewStore(test)
	ctx := testContext(test)

	require.NoError(test, store.Append(ctx, "a", directory.Record{"table": "a"}))
	require.NoError(test, store.Append(ctx, "b", directory.Record{"table": "b"}))

	recordsA, err := store.GetAll(ctx, "a")
	require.NoError(test, err)
	recordsB, err := store.GetAll(ctx, "b")
	require.NoError(test, err)

	require.Len(test, recordsA, 1)
	require.Len(test, recordsB, 1)
	assert.Equal(test, "a", recordsA[0]["table"])
	assert.Equal(test, "b", recordsB[0]["table"])
}

// TestAppend_DuplicateRows verifies the store never deduplicates; that is
// the caller's concern.
func (suite *StoreTestSuite) TestAppend_DuplicateRows(test *testing.T) {
	store := suite.NewStore(test)
	ctx := testContext(test)

	rec := directory.Record{"k": "v"}
	require.NoError(test, store.Append(ctx, "rows", rec))
	require.NoError(test, store.Append(ctx, "rows", rec))

	records, err := store.GetAll(ctx, "rows")
	require.NoError(test, err)
	assert.Len(test, records, 2)
}

// TestFind_FirstMatch verifies Find returns the oldest matching record.
func (suite *StoreTestSuite) TestFind_FirstMatch(test *testing.T) {
	store := suite.NewStore(test)
	ctx := testContext(test)

	require.NoError(test, store.Append(ctx, "rows", directory.Record{"user": "alice", "seq": "1"}))
	require.NoError(test, store.Append(ctx, "rows", directory.Record{"user": "alice", "seq": "2"}))

	rec, err := store.Find(ctx, "rows", directory.Record{"user": "alice"})
	require.NoError(test, err)
	assert.Equal(test, "1", rec["seq"])
}

// TestFind_MultiField verifies all criteria fields must match.
func (suite *StoreTestSuite) TestFind_MultiField(test *testing.T) {
	store := suite.NewStore(test)
	ctx := testContext(test)

	require.NoError(test, store.Append(ctx, "rows", directory.Record{"owner": "a", "contact": "x"}))
	require.NoError(test, store.Append(ctx, "rows", directory.Record{"owner": "a", "contact": "y"}))

	rec, err := store.Find(ctx, "rows", directory.Record{"owner": "a", "contact": "y"})
	require.NoError(test, err)
	assert.Equal(test, "y", rec["contact"])
}

// TestFind_NotFound verifies the not-found error is detectable with
// directory.IsNotFound.
func (suite *StoreTestSuite) TestFind_NotFound(test *testing.T) {
	store := suite.NewStore(test)
	ctx := testContext(test)

	require.NoError(test, store.Append(ctx, "rows", directory.Record{"k": "v"}))

	_, err := store.Find(ctx, "rows", directory.Record{"k": "other"})
	require.Error(test, err)
	assert.True(test, directory.IsNotFound(err))
}

// TestFindAll_Filtered verifies FindAll returns every match in insertion
// order.
func (suite *StoreTestSuite) TestFindAll_Filtered(test *testing.T) {
	store := suite.NewStore(test)
	ctx := testContext(test)

	require.NoError(test, store.Append(ctx, "rows", directory.Record{"owner": "a", "n": "1"}))
	require.NoError(test, store.Append(ctx, "rows", directory.Record{"owner": "b", "n": "2"}))
	require.NoError(test, store.Append(ctx, "rows", directory.Record{"owner": "a", "n": "3"}))

	records, err := store.FindAll(ctx, "rows", directory.Record{"owner": "a"})
	require.NoError(test, err)
	require.Len(test, records, 2)
	assert.Equal(test, "1", records[0]["n"])
	assert.Equal(test, "3", records[1]["n"])
}

// TestFindAll_NoMatches verifies FindAll returns an empty slice, not an
// error, when nothing matches.
func (suite *StoreTestSuite) TestFindAll_NoMatches(test *testing.T) {
	store := suite.NewStore(test)
	ctx := testContext(test)

	require.NoError(test, store.Append(ctx, "rows", directory.Record{"owner": "a"}))

	records, err := store.FindAll(ctx, "rows", directory.Record{"owner": "z"})
	require.NoError(test, err)
	assert.Empty(test, records)
}

// TestUpdate_MergesPatch verifies the patch merges into the matched record
// without dropping untouched fields.
func (suite *StoreTestSuite) TestUpdate_MergesPatch(test *testing.T) {
	store := suite.NewStore(test)
	ctx := testContext(test)

	require.NoError(test, store.Append(ctx, "rows", directory.Record{"id": "1", "name": "old", "email": "e"}))

	updated, err := store.Update(ctx, "rows", directory.Record{"id": "1"}, directory.Record{"name": "new"})
	require.NoError(test, err)
	assert.True(test, updated)

	rec, err := store.Find(ctx, "rows", directory.Record{"id": "1"})
	require.NoError(test, err)
	assert.Equal(test, "new", rec["name"])
	assert.Equal(test, "e", rec["email"])
}

// TestUpdate_FirstMatchOnly verifies only the oldest matching record is
// patched.
func (suite *StoreTestSuite) TestUpdate_FirstMatchOnly(test *testing.T) {
	store := suite.NewStore(test)
	ctx := testContext(test)

	require.NoError(test, store.Append(ctx, "rows", directory.Record{"user": "a", "seq": "1"}))
	require.NoError(test, store.Append(ctx, "rows", directory.Record{"user": "a", "seq": "2"}))

	updated, err := store.Update(ctx, "rows", directory.Record{"user": "a"}, directory.Record{"touched": "yes"})
	require.NoError(test, err)
	assert.True(test, updated)

	records, err := store.GetAll(ctx, "rows")
	require.NoError(test, err)
	require.Len(test, records, 2)
	assert.Equal(test, "yes", records[0]["touched"])
	assert.Empty(test, records[1]["touched"])
}

// TestUpdate_NoMatch verifies Update reports false without erroring when
// nothing matches.
func (suite *StoreTestSuite) TestUpdate_NoMatch(test *testing.T) {
	store := suite.NewStore(test)
	ctx := testContext(test)

	updated, err := store.Update(ctx, "rows", directory.Record{"id": "missing"}, directory.Record{"k": "v"})
	require.NoError(test, err)
	assert.False(test, updated)
}

// TestUpdate_PreservesOrder verifies an updated record keeps its position
// in the table.
func (suite *StoreTestSuite) TestUpdate_PreservesOrder(test *testing.T) {
	store := suite.NewStore(test)
	ctx := testContext(test)

	for i := 0; i < 3; i++ {
		require.NoError(test, store.Append(ctx, "rows", directory.Record{"n": fmt.Sprintf("%d", i)}))
	}

	updated, err := store.Update(ctx, "rows", directory.Record{"n": "1"}, directory.Record{"touched": "yes"})
	require.NoError(test, err)
	assert.True(test, updated)

	records, err := store.GetAll(ctx, "rows")
	require.NoError(test, err)
	require.Len(test, records, 3)
	assert.Equal(test, "1", records[1]["n"])
	assert.Equal(test, "yes", records[1]["touched"])
}

// TestHealthcheck_Healthy verifies a freshly opened store reports healthy.
func (suite *StoreTestSuite) TestHealthcheck_Healthy(test *testing.T) {
	store := suite.NewStore(test)
	ctx := testContext(test)

	assert.NoError(test, store.Healthcheck(ctx))
}

// TestConcurrency_ParallelAppends verifies appends from many goroutines
// all land exactly once.
func (suite *StoreTestSuite) TestConcurrency_ParallelAppends(test *testing.T) {
	store := suite.NewStore(test)
	ctx := testContext(test)

	const writers = 8
	const perWriter = 10

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				rec := directory.Record{"writer": fmt.Sprintf("%d", w), "i": fmt.Sprintf("%d", i)}
				assert.NoError(test, store.Append(ctx, "rows", rec))
			}
		}(w)
	}
	wg.Wait()

	records, err := store.GetAll(ctx, "rows")
	require.NoError(test, err)
	assert.Len(test, records, writers*perWriter)
}
