// Package memory provides an in-memory directory store.
//
// The store keeps every table as an append-ordered slice guarded by a
// single RWMutex. It is intended for tests and for single-node deployments
// that do not need persistence; nothing survives a restart.
package memory

import (
	"context"
	"sync"

	"github.com/squawkhq/squawk/pkg/directory"
)

// Store is an in-memory implementation of directory.Store.
//
// Thread safety: all operations may be called concurrently.
type Store struct {
	mu     sync.RWMutex
	tables map[string][]directory.Record
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{tables: make(map[string][]directory.Record)}
}

// GetAll returns a copy of every record in the table, in insertion order.
// An unknown table is an empty table, not an error.
func (s *Store) GetAll(ctx context.Context, table string) ([]directory.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.tables[table]
	out := make([]directory.Record, len(rows))
	for i, rec := range rows {
		out[i] = rec.Clone()
	}
	return out, nil
}

// Append adds a record to the end of the table, creating the table on
// first use.
func (s *Store) Append(ctx context.Context, table string, rec directory.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables[table] = append(s.tables[table], rec.Clone())
	return nil
}

// Find returns the first record matching every criteria field, or a
// not-found error.
func (s *Store) Find(ctx context.Context, table string, criteria directory.Record) (directory.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.tables[table] {
		if rec.Matches(criteria) {
			return rec.Clone(), nil
		}
	}
	return nil, directory.NotFound(table)
}

// FindAll returns every record matching the criteria, in insertion order.
func (s *Store) FindAll(ctx context.Context, table string, criteria directory.Record) ([]directory.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []directory.Record
	for _, rec := range s.tables[table] {
		if rec.Matches(criteria) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// Update merges patch into the first record matching the criteria.
// Returns false when no record matched.
func (s *Store) Update(ctx context.Context, table string, criteria, patch directory.Record) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.tables[table] {
		if rec.Matches(criteria) {
			for k, v := range patch {
				rec[k] = v
			}
			return true, nil
		}
	}
	return false, nil
}

// Healthcheck always succeeds.
func (s *Store) Healthcheck(ctx context.Context) error {
	return ctx.Err()
}

// Close releases the store. The store must not be used afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = nil
	return nil
}
