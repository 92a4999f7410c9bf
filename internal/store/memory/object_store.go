package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/DammyCodes-all/framez-socials/internal/store"
)

// StoredObject is an uploaded object kept by ObjectStore.
type StoredObject struct {
	ContentType string
	Data        []byte
}

// ObjectStore implements store.ObjectStore using in-memory storage.
type ObjectStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]StoredObject
}

var _ store.ObjectStore = (*ObjectStore)(nil)

// NewObjectStore creates a store whose public URLs are rooted at baseURL.
func NewObjectStore(baseURL string) *ObjectStore {
	return &ObjectStore{
		baseURL: baseURL,
		objects: make(map[string]StoredObject),
	}
}

func (s *ObjectStore) Upload(ctx context.Context, obj store.Object) error {
	if obj.Key == "" || obj.Body == nil {
		return store.ErrInvalidInput
	}

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[obj.Key]; exists {
		return store.ErrObjectExists
	}
	s.objects[obj.Key] = StoredObject{ContentType: obj.ContentType, Data: bytes.Clone(data)}

	return nil
}

func (s *ObjectStore) PublicURL(key string) string {
	return s.baseURL + "/" + key
}

// Get returns a stored object, for tests.
func (s *ObjectStore) Get(key string) (StoredObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}
