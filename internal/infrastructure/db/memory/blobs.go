package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/ports"
)

type blob struct {
	name string
	data []byte
}

// Blobs is an in-memory BlobStorage. URLs point at the API's /files route.
type Blobs struct {
	baseURL string

	mu    sync.RWMutex
	files map[string]blob
}

var _ ports.BlobStorage = (*Blobs)(nil)

func NewBlobs(publicBaseURL string) *Blobs {
	return &Blobs{
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		files:   make(map[string]blob),
	}
}

func (b *Blobs) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	b.mu.Lock()
	b.files[id] = blob{name: name, data: data}
	b.mu.Unlock()
	return b.baseURL + "/files/" + id, nil
}

func (b *Blobs) Open(_ context.Context, id string) (io.ReadCloser, string, error) {
	b.mu.RLock()
	f, ok := b.files[id]
	b.mu.RUnlock()
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(f.data)), f.name, nil
}
