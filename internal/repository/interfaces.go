package repository

import (
	"context"

	"go-servicetag-scanner/internal/capture"
)

// ImageRepository defines data access for captured photos
type ImageRepository interface {
	// LoadImage returns the raw bytes behind an image reference
	LoadImage(ctx context.Context, ref capture.ImageReference) ([]byte, error)

	// ValidateReference checks that a reference is complete and points somewhere readable
	ValidateReference(ref capture.ImageReference) error
}
