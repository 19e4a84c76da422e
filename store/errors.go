package store

import "errors"

var (
	// ErrNotFound indicates the key does not exist in the bucket.
	ErrNotFound = errors.New("store: key not found")

	// ErrUnknownBucket indicates the bucket was not declared when the store was opened.
	ErrUnknownBucket = errors.New("store: unknown bucket")

	// ErrEmptyKey indicates a zero-length key.
	ErrEmptyKey = errors.New("store: empty key")
)
