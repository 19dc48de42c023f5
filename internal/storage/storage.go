package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// FileStorage defines the interface for object storage operations. Used for
// client avatars and exercise demonstration media.
type FileStorage interface {
	// GeneratePresignedUploadURL creates a temporary URL that allows PUT requests
	// for uploading an object directly to the storage provider.
	GeneratePresignedUploadURL(ctx context.Context, objectKey string, contentType string, expires time.Duration) (string, error)

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET requests
	// for downloading/viewing an object directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// DeleteObject removes an object from the storage provider.
	DeleteObject(ctx context.Context, objectKey string) error
}

// AvatarKey builds the object key for a client avatar upload.
func AvatarKey(tenantID, clientID string) string {
	return "avatars/" + tenantID + "/" + clientID + "/" + uuid.NewString()
}

// MediaKey builds the object key for exercise demonstration media.
func MediaKey(tenantID, coachID string) string {
	return "media/" + tenantID + "/" + coachID + "/" + uuid.NewString()
}
