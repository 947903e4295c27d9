package ports

import (
	"context"
	"io"
)

// BlobStorage stores uploaded file contents.
type BlobStorage interface {
	// Upload stores the contents of r under name and returns its download URL.
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
	// Open returns the blob stored under id along with its original name.
	Open(ctx context.Context, id string) (io.ReadCloser, string, error)
}
