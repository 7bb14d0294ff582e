// Package storage defines where submitted source files are kept.
package storage

import (
	"context"

	"github.com/starford/labdesk/internal/models"
)

// Provider is the interface for submission file operations.
// Paths are slash-separated and relative to the store root.
type Provider interface {
	// List returns metadata for every .py and .ipynb file under dir.
	List(ctx context.Context, dir string) ([]models.SourceMetadata, error)
	// Read returns the raw bytes of the file at path.
	// A missing file yields an error wrapping apperr.ErrNotFound.
	Read(ctx context.Context, path string) ([]byte, error)
	// Write atomically stores content at path.
	Write(ctx context.Context, path string, content []byte) error
	// Delete removes the file at path.
	Delete(ctx context.Context, path string) error
}
