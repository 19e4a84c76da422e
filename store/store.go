// Package store provides the bucketed key/value persistence used by the
// invoice registry and the payment router.
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/payroute/libpayroute-go/chain"
)

// KV persists values in named buckets.
type KV interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(bucket, key []byte) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(bucket, key, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(bucket, key []byte) error

	// ForEach visits every key in the bucket in byte order.
	ForEach(bucket []byte, fn func(key, value []byte) error) error
}

// PutIn writes value under key as part of call. If the call reverts the
// previous value (or absence) is restored.
func PutIn(call *chain.Call, kv KV, bucket, key, value []byte) error {
	if call == nil {
		return chain.ErrNilCall
	}
	prev, err := kv.Get(bucket, key)
	existed := true
	if errors.Is(err, ErrNotFound) {
		existed = false
	} else if err != nil {
		return err
	}

	if err := kv.Put(bucket, key, value); err != nil {
		return err
	}

	k := append([]byte(nil), key...)
	call.OnRevert(func() {
		if existed {
			_ = kv.Put(bucket, k, prev)
		} else {
			_ = kv.Delete(bucket, k)
		}
	})
	return nil
}

// MemKV is an in-memory implementation of KV.
type MemKV struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
}

// Compile-time interface check.
var _ KV = (*MemKV)(nil)

// NewMemKV creates an empty in-memory store. Buckets are created on first write.
func NewMemKV() *MemKV {
	return &MemKV{buckets: make(map[string]map[string][]byte)}
}

// Get returns the value stored under key.
func (s *MemKV) Get(bucket, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.buckets[string(bucket)][string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put stores value under key.
func (s *MemKV) Put(bucket, key, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[string(bucket)]
	if !ok {
		b = make(map[string][]byte)
		s.buckets[string(bucket)] = b
	}
	b[string(key)] = append([]byte(nil), value...)
	return nil
}

// Delete removes key.
func (s *MemKV) Delete(bucket, key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.buckets[string(bucket)], string(key))
	return nil
}

// ForEach visits every key in the bucket in byte order.
func (s *MemKV) ForEach(bucket []byte, fn func(key, value []byte) error) error {
	s.mu.RLock()
	b := s.buckets[string(bucket)]
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = append([]byte(nil), b[k]...)
	}
	s.mu.RUnlock()

	for i, k := range keys {
		if err := fn([]byte(k), values[i]); err != nil {
			return fmt.Errorf("store: visit %x: %w", k, err)
		}
	}
	return nil
}
