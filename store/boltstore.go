package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const openTimeout = time.Second

// BoltKV wraps a bbolt database. Buckets are fixed at open time.
type BoltKV struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ KV = (*BoltKV)(nil)

// OpenBolt opens or creates the bbolt database at dbPath and ensures the
// given buckets exist. The parent directory is created if it does not exist.
// Opening a database another handle holds fails after openTimeout.
func OpenBolt(dbPath string, buckets ...[]byte) (*BoltKV, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("store: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltstore: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create buckets: %w", err)
	}

	return &BoltKV{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltKV) Close() error { return s.db.Close() }

// Get returns the value stored under key.
func (s *BoltKV) Get(bucket, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}

	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return fmt.Errorf("%w: %q", ErrUnknownBucket, bucket)
		}
		v := b.Get(key)
		if v == nil {
			return ErrNotFound
		}
		// bbolt values are only valid for the life of the transaction.
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Put stores value under key.
func (s *BoltKV) Put(bucket, key, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return fmt.Errorf("%w: %q", ErrUnknownBucket, bucket)
		}
		if err := b.Put(key, value); err != nil {
			return fmt.Errorf("boltstore: put %q: %w", bucket, err)
		}
		return nil
	})
}

// Delete removes key.
func (s *BoltKV) Delete(bucket, key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return fmt.Errorf("%w: %q", ErrUnknownBucket, bucket)
		}
		return b.Delete(key)
	})
}

// ForEach visits every key in the bucket in byte order.
func (s *BoltKV) ForEach(bucket []byte, fn func(key, value []byte) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return fmt.Errorf("%w: %q", ErrUnknownBucket, bucket)
		}
		return b.ForEach(func(k, v []byte) error {
			if err := fn(append([]byte(nil), k...), append([]byte(nil), v...)); err != nil {
				return fmt.Errorf("store: visit %x: %w", k, err)
			}
			return nil
		})
	})
}
