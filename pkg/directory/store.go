package directory

import (
	"context"
)

// Table names understood by every Store backend.
const (
	// TableUsers holds one row per known user identity.
	TableUsers = "users"

	// TableContacts holds one row per directed contact edge.
	TableContacts = "contacts"
)

// Field names shared by all backends. Records are flat string maps so the
// same schema works against backends with no native typing (a remote
// tabular API stores everything as text anyway).
const (
	FieldIdentity  = "identity"
	FieldName      = "name"
	FieldEmail     = "email"
	FieldImageRef  = "image_ref"
	FieldCreatedAt = "created_at"

	FieldOwnerID         = "owner_id"
	FieldContactID       = "contact_id"
	FieldContactName     = "contact_name"
	FieldContactImageRef = "contact_image_ref"
)

// Record is a single table row as a field-name to string-value mapping.
type Record map[string]string

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Matches reports whether every field named in criteria is present in the
// record with an exactly equal value. An empty criteria matches everything.
func (r Record) Matches(criteria Record) bool {
	for field, want := range criteria {
		if r[field] != want {
			return false
		}
	}
	return true
}

// Store is the minimal tabular storage interface behind the directory.
//
// The interface is deliberately a table abstraction rather than a query
// language: the backend roster includes remote tabular APIs with no query
// planner, so every operation must be expressible as "fetch all rows,
// filter client-side, append or rewrite a row". Backends with real
// indexing may optimize Find/FindAll internally but must preserve the
// exact-match, first-match, insertion-order contracts.
//
// Consistency: Append never mutates existing rows. Callers must not assume
// a write is visible to a concurrent GetAll immediately; remote backends
// may have read-after-write lag.
//
// Thread safety: implementations must be safe for concurrent use.
type Store interface {
	// GetAll returns every record in the table in insertion order.
	// An empty table yields an empty slice, not an error. Backends that
	// degrade gracefully may also return an empty slice on transient
	// read failures.
	GetAll(ctx context.Context, table string) ([]Record, error)

	// Append adds one record to the table. Atomicity is backend-defined.
	Append(ctx context.Context, table string, record Record) error

	// Find returns the first record whose named fields exactly equal the
	// criteria values, scanning in insertion order. Returns a StoreError
	// with ErrNotFound when nothing matches.
	Find(ctx context.Context, table string, criteria Record) (Record, error)

	// FindAll returns every matching record in insertion order.
	FindAll(ctx context.Context, table string, criteria Record) ([]Record, error)

	// Update locates the first record matching criteria and rewrites only
	// the fields named in patch, leaving others untouched. Returns false
	// (not an error) when no record matches.
	Update(ctx context.Context, table string, criteria, patch Record) (bool, error)

	// Healthcheck verifies the backend can serve requests. Remote backends
	// should bound the check by the context deadline.
	Healthcheck(ctx context.Context) error

	// Close releases backend resources. Safe to call once after the store
	// is no longer in use.
	Close() error
}

// ScanFind is the shared GetAll-plus-linear-scan implementation of Find,
// used by backends with no native lookup. O(n) in table size, which is
// acceptable because table sizes are bounded by installation scale.
func ScanFind(ctx context.Context, s Store, table string, criteria Record) (Record, error) {
	records, err := s.GetAll(ctx, table)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.Matches(criteria) {
			return rec, nil
		}
	}
	return nil, NotFound(table)
}

// ScanFindAll is the shared scan implementation of FindAll.
func ScanFindAll(ctx context.Context, s Store, table string, criteria Record) ([]Record, error) {
	records, err := s.GetAll(ctx, table)
	if err != nil {
		return nil, err
	}
	matches := make([]Record, 0, len(records))
	for _, rec := range records {
		if rec.Matches(criteria) {
			matches = append(matches, rec)
		}
	}
	return matches, nil
}
