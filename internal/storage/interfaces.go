package storage

import (
	"context"
	"io"
)

// BlobStorage defines the object storage operations the pipeline depends on.
// Uploads must be idempotent: writing the same key again overwrites it, which
// is what makes queue-level redelivery a safe retry strategy.
type BlobStorage interface {
	// Upload writes one blob under key with the given content type
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Exists checks if a blob exists in storage
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes a blob from storage
	Delete(ctx context.Context, key string) error

	// GetURL returns the public URL for a blob
	GetURL(key string) string

	// Health checks storage service health
	Health(ctx context.Context) error
}
