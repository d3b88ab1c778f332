package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// SchemaVersion is the store layout version this build reads and writes.
// A store stamped with a higher version refuses to open; there is no
// forward-migration path.
const SchemaVersion = "1"

const bucketName = "auth"

// BoltStore is a bbolt-backed Store. A single bucket holds the whole record;
// each call runs in one transaction, so multi-key writes are atomic.
type BoltStore struct {
	db *bolt.DB
}

// Open opens (or creates) the store at path and verifies the schema stamp.
func Open(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("store: failed to create directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: failed to open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		bucket, errBucket := tx.CreateBucketIfNotExists([]byte(bucketName))
		if errBucket != nil {
			return errBucket
		}
		stamped := bucket.Get([]byte(KeySchemaVersion))
		if stamped == nil {
			return bucket.Put([]byte(KeySchemaVersion), []byte(SchemaVersion))
		}
		if string(stamped) != SchemaVersion {
			return fmt.Errorf("store: unsupported schema version %q, this build supports %q", stamped, SchemaVersion)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Get returns the values for the requested keys, omitting absent ones.
func (s *BoltStore) Get(ctx context.Context, keys ...string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	values := make(map[string]string, len(keys))
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		for _, key := range keys {
			if raw := bucket.Get([]byte(key)); raw != nil {
				values[key] = string(raw)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: get failed: %w", err)
	}
	return values, nil
}

// Set writes the given keys in one transaction.
func (s *BoltStore) Set(ctx context.Context, values map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		for key, value := range values {
			if errPut := bucket.Put([]byte(key), []byte(value)); errPut != nil {
				return errPut
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: set failed: %w", err)
	}
	return nil
}

// Remove deletes the given keys in one transaction.
func (s *BoltStore) Remove(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		for _, key := range keys {
			if errDelete := bucket.Delete([]byte(key)); errDelete != nil {
				return errDelete
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: remove failed: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
