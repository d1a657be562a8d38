// Package blobstore keeps file content in object storage, addressed by the
// storage keys derived in package fingerprint.
package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("blob not found")

// Store is the blob store used by the upload and retrieval pipelines.
type Store interface {
	// Put stores r under key. A negative size means unknown length.
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	// Get opens the object under key. Callers close the returned reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
