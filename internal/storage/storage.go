package storage

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrBucketExists is returned by CreateBucket when the bucket is already
	// present (including when it is owned by the caller). Callers that want
	// idempotent creation treat it as success.
	ErrBucketExists = errors.New("bucket already exists")
	// ErrBucketNotFound indicates the named bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")
	// ErrObjectNotFound indicates no object is stored under the given key.
	ErrObjectNotFound = errors.New("object not found")
	// ErrBucketNotEmpty is returned by DeleteBucket while objects remain.
	ErrBucketNotEmpty = errors.New("bucket not empty")
)

// ObjectStore is the storage capability the session orchestrator runs
// against. Implementations are expected to provide read-after-write
// consistency for List relative to Put.
type ObjectStore interface {
	// CreateBucket creates the bucket, returning ErrBucketExists when it
	// is already present.
	CreateBucket(ctx context.Context, bucket string) error
	// Put writes the full content of body under bucket/key.
	Put(ctx context.Context, bucket, key string, body io.Reader) error
	// List returns all object keys in the bucket. Order is backend-defined.
	List(ctx context.Context, bucket string) ([]string, error)
	// Get returns a reader for the object content. The caller closes it.
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	// Delete removes a single object.
	Delete(ctx context.Context, bucket, key string) error
	// DeleteBucket removes the bucket, which must be empty.
	DeleteBucket(ctx context.Context, bucket string) error
}
