package store

import "context"

// BlobStore persists small string values by key.
type BlobStore interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
}
