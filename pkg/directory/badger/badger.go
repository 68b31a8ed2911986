// Package badger provides a persistent directory store backed by BadgerDB.
//
// Each table lives under its own key prefix and every appended record gets
// a monotonically increasing sequence number, so a prefix scan returns the
// table in insertion order. Records are stored as JSON values.
//
// Key schema:
//
//	t/<table>/<seq>   record JSON (seq is a big-endian uint64)
//
// The big-endian encoding makes lexicographic key order equal numeric
// sequence order, which is what Badger's iterator gives us for free.
package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/squawkhq/squawk/pkg/directory"
)

// Store is a BadgerDB-backed implementation of directory.Store.
//
// Thread safety: BadgerDB transactions handle concurrent reads; a store
// level mutex serializes Append and Update so that find-then-write
// operations in the Service layer observe a consistent table.
type Store struct {
	mu  sync.Mutex
	db  *badger.DB
	seq map[string]*badger.Sequence
}

// Config contains configuration for opening a BadgerDB directory store.
type Config struct {
	// DBPath is the directory where BadgerDB stores its files.
	DBPath string

	// InMemory runs BadgerDB without touching the filesystem. Used by
	// tests; DBPath is ignored when set.
	InMemory bool
}

// New opens (or creates) a BadgerDB directory store at config.DBPath.
func New(ctx context.Context, config Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(config.DBPath)
	}
	// Directory rows are tiny; compression overhead is not worth it.
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	return &Store{db: db, seq: make(map[string]*badger.Sequence)}, nil
}

func tablePrefix(table string) []byte {
	return []byte("t/" + table + "/")
}

func recordKey(table string, seq uint64) []byte {
	prefix := tablePrefix(table)
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], seq)
	return key
}

// sequence returns the per-table sequence, creating it on first use.
// Caller must hold s.mu.
func (s *Store) sequence(table string) (*badger.Sequence, error) {
	if seq, ok := s.seq[table]; ok {
		return seq, nil
	}
	seq, err := s.db.GetSequence([]byte("seq/"+table), 64)
	if err != nil {
		return nil, fmt.Errorf("failed to open sequence for table %q: %w", table, err)
	}
	s.seq[table] = seq
	return seq, nil
}

// GetAll returns every record in the table in insertion order.
func (s *Store) GetAll(ctx context.Context, table string) ([]directory.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []directory.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = tablePrefix(table)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec directory.Record
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("corrupt record in table %q: %w", table, err)
				}
				out = append(out, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []directory.Record{}
	}
	return out, nil
}

// Append stores the record at the end of the table.
func (s *Store) Append(ctx context.Context, table string, rec directory.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq, err := s.sequence(table)
	if err != nil {
		return err
	}
	n, err := seq.Next()
	if err != nil {
		return fmt.Errorf("failed to advance sequence for table %q: %w", table, err)
	}

	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(table, n), val)
	})
}

// Find returns the first record matching the criteria in insertion order.
func (s *Store) Find(ctx context.Context, table string, criteria directory.Record) (directory.Record, error) {
	rec, _, err := s.find(ctx, table, criteria)
	return rec, err
}

// find also returns the matched key so Update can write it back in place.
func (s *Store) find(ctx context.Context, table string, criteria directory.Record) (directory.Record, []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var (
		match directory.Record
		key   []byte
	)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = tablePrefix(table)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var rec directory.Record
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("corrupt record in table %q: %w", table, err)
			}
			if rec.Matches(criteria) {
				match = rec
				key = item.KeyCopy(nil)
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if match == nil {
		return nil, nil, directory.NotFound(table)
	}
	return match, key, nil
}

// FindAll returns every record matching the criteria in insertion order.
func (s *Store) FindAll(ctx context.Context, table string, criteria directory.Record) ([]directory.Record, error) {
	return directory.ScanFindAll(ctx, s, table, criteria)
}

// Update merges patch into the first record matching the criteria,
// rewriting it under its original key so the table order is preserved.
// Returns false when no record matched.
func (s *Store) Update(ctx context.Context, table string, criteria, patch directory.Record) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, key, err := s.find(ctx, table, criteria)
	if directory.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	for k, v := range patch {
		rec[k] = v
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("failed to encode record: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Healthcheck verifies the database is open and readable.
func (s *Store) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return directory.Unavailable("", "database is closed")
	}
	return nil
}

// Close releases the per-table sequences and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for table, seq := range s.seq {
		if err := seq.Release(); err != nil {
			return fmt.Errorf("failed to release sequence for table %q: %w", table, err)
		}
	}
	s.seq = make(map[string]*badger.Sequence)
	return s.db.Close()
}
