// Package blob lists and reads guidance documents from a key-addressed store.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNotFound is returned by Read when the key does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrTooLarge is returned by Read when an object exceeds maxObjectSize.
	ErrTooLarge = errors.New("object too large")
)

// maxObjectSize caps how much of a single object is read into memory.
const maxObjectSize = 32 << 20

// Object describes one stored document.
type Object struct {
	Key  string
	ETag string
	Size int64
}

// Store is a read-only view of a bucket of documents.
type Store interface {
	// List returns every object in listing order.
	List(ctx context.Context) ([]Object, error)

	// Read returns the full contents of the object stored under key.
	Read(ctx context.Context, key string) ([]byte, error)

	// Name identifies the bucket or directory, used to namespace caches and logs.
	Name() string
}

// readLimited reads all of r, failing with ErrTooLarge instead of truncating
// when r holds more than limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}
