// Package s3 provides a directory store backed by Amazon S3 or any
// S3-compatible object storage.
//
// Each table is a single JSON object holding the full record slice, so a
// table read is one GetObject and a table write is a read-modify-write
// PutObject. That model matches the directory workload (small tables,
// rare writes) and keeps the bucket contents human-inspectable.
//
// Remote calls are throttled through a shared token bucket and bounded
// by a per-operation timeout, since a slow or rate-limiting endpoint
// must not stall callers indefinitely.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/squawkhq/squawk/internal/ratelimiter"
	"github.com/squawkhq/squawk/pkg/directory"
)

// Store is an S3-backed implementation of directory.Store.
//
// Thread Safety:
// Reads may run concurrently. A store-level mutex serializes every
// mutation's read-modify-write cycle against this process; concurrent
// writers in other processes are last-write-wins, which the directory
// workload tolerates.
type Store struct {
	writeMu sync.Mutex

	client    *awss3.Client
	bucket    string
	keyPrefix string
	limiter   *ratelimiter.RateLimiter
	opTimeout time.Duration
}

// Config contains configuration for the S3 directory store.
type Config struct {
	// Client is the configured S3 client.
	Client *awss3.Client

	// Bucket is the S3 bucket name. The bucket must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all table objects.
	// Example: "squawk/directory/" stores the users table at
	// "squawk/directory/users.json".
	KeyPrefix string

	// RequestsPerSecond throttles remote calls. 0 disables throttling.
	RequestsPerSecond uint

	// Burst is the token bucket burst size (default: 5).
	Burst uint

	// OpTimeout bounds each remote call (default: 10s).
	OpTimeout time.Duration
}

// New creates an S3 directory store and verifies bucket access.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	burst := cfg.Burst
	if burst == 0 {
		burst = 5
	}
	opTimeout := cfg.OpTimeout
	if opTimeout == 0 {
		opTimeout = 10 * time.Second
	}

	store := &Store{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		limiter:   ratelimiter.New(cfg.RequestsPerSecond, burst),
		opTimeout: opTimeout,
	}

	if err := store.Healthcheck(ctx); err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}
	return store, nil
}

func (s *Store) tableKey(table string) string {
	return s.keyPrefix + table + ".json"
}

// acquire waits for a rate limiter token and returns a context bounded by
// the per-operation timeout.
func (s *Store) acquire(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	return opCtx, cancel, nil
}

// load fetches and decodes the table object. A missing object is an empty
// table, not an error.
func (s *Store) load(ctx context.Context, table string) ([]directory.Record, error) {
	opCtx, cancel, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	out, err := s.client.GetObject(opCtx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.tableKey(table)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return []directory.Record{}, nil
		}
		return nil, directory.Unavailable(table, fmt.Sprintf("GetObject failed: %v", err))
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, directory.Unavailable(table, fmt.Sprintf("read object body: %v", err))
	}

	var records []directory.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("corrupt table object %q: %w", s.tableKey(table), err)
	}
	return records, nil
}

// save replaces the table object with the given record slice.
func (s *Store) save(ctx context.Context, table string, records []directory.Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode table %q: %w", table, err)
	}

	opCtx, cancel, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	_, err = s.client.PutObject(opCtx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.tableKey(table)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return directory.Unavailable(table, fmt.Sprintf("PutObject failed: %v", err))
	}
	return nil
}

// GetAll returns every record in the table in insertion order.
func (s *Store) GetAll(ctx context.Context, table string) ([]directory.Record, error) {
	return s.load(ctx, table)
}

// Append adds the record to the end of the table.
func (s *Store) Append(ctx context.Context, table string, rec directory.Record) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	records, err := s.load(ctx, table)
	if err != nil {
		return err
	}
	records = append(records, rec.Clone())
	return s.save(ctx, table, records)
}

// Find returns the first record matching the criteria. A remote table
// has no query surface, so matching is a client-side scan.
func (s *Store) Find(ctx context.Context, table string, criteria directory.Record) (directory.Record, error) {
	return directory.ScanFind(ctx, s, table, criteria)
}

// FindAll returns every record matching the criteria in insertion order.
func (s *Store) FindAll(ctx context.Context, table string, criteria directory.Record) ([]directory.Record, error) {
	return directory.ScanFindAll(ctx, s, table, criteria)
}

// Update merges patch into the first record matching the criteria.
// Returns false when no record matched.
func (s *Store) Update(ctx context.Context, table string, criteria, patch directory.Record) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	records, err := s.load(ctx, table)
	if err != nil {
		return false, err
	}
	for _, rec := range records {
		if rec.Matches(criteria) {
			for k, v := range patch {
				rec[k] = v
			}
			return true, s.save(ctx, table, records)
		}
	}
	return false, nil
}

// Healthcheck verifies the bucket is reachable.
func (s *Store) Healthcheck(ctx context.Context) error {
	opCtx, cancel, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	_, err = s.client.HeadBucket(opCtx, &awss3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return directory.Unavailable("", fmt.Sprintf("HeadBucket failed: %v", err))
	}
	return nil
}

// Close releases the store. The underlying S3 client is shared and is not
// closed here.
func (s *Store) Close() error {
	return nil
}
