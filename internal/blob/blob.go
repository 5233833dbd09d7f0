// Package blob abstracts the object store documents and news articles
// arrive in.
package blob

import "context"

// Store reads and deletes source objects. Buckets map to directories for
// the filesystem implementation.
type Store interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, data []byte) error
	Delete(ctx context.Context, bucket, key string) error
}
