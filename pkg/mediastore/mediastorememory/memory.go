// Package mediastorememory keeps uploaded objects in process memory. It
// backs tests and store-less local runs with the same contract as the S3
// provider, including idempotent deletes.
package mediastorememory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Pikiko14/motowork-products/pkg/mediastore"
	"github.com/google/uuid"
)

// MemoryStore implements mediastore.MediaStore in memory.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	// FailNext makes the next N Upload calls fail. Tests use it to
	// simulate a flaky media store.
	FailNext int

	uploads int
}

// New creates an empty in-memory media store.
func New() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Upload(ctx context.Context, data []byte, folder string) (*mediastore.UploadResult, error) {
	if len(data) == 0 {
		return nil, mediastore.NewEmptyFileError()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.uploads++
	if m.FailNext > 0 {
		m.FailNext--
		return nil, mediastore.NewUploadError(fmt.Errorf("injected upload failure %d", m.uploads))
	}

	url := fmt.Sprintf("https://media.test/%s/%s", folder, uuid.New().String())
	stored := make([]byte, len(data))
	copy(stored, data)
	m.objects[url] = stored

	return &mediastore.UploadResult{SecureURL: url}, nil
}

func (m *MemoryStore) DeleteByURL(ctx context.Context, url string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[url]; !ok {
		return false, nil
	}
	delete(m.objects, url)
	return true, nil
}

// Uploads reports how many Upload attempts were made, failed ones included.
func (m *MemoryStore) Uploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploads
}

// Len reports how many objects are stored.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Has reports whether the URL still resolves to a stored object.
func (m *MemoryStore) Has(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[url]
	return ok
}
