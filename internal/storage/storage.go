package storage

import (
	"context"
	"time"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// FileStorage defines the interface for object storage operations. Plan
// documents and measurement images are buffered by the request layer and
// uploaded server-side; reads go through short-lived presigned URLs.
type FileStorage interface {
	// Upload stores an object under the given key, replacing any previous
	// object wholesale.
	Upload(ctx context.Context, objectKey string, data []byte, contentType string) error

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET
	// requests for the object directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// DeleteObject removes an object from the storage provider.
	DeleteObject(ctx context.Context, objectKey string) error
}
