package sessionstore

import (
	"context"
	"sync"

	"github.com/DammyCodes-all/framez-socials/internal/models"
)

// MemoryStore implements Storage in memory.
// This implementation is for testing only - data is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	session *models.Session
}

var _ Storage = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil {
		return nil, ErrNoSession
	}

	// Clone to avoid external modifications
	clone := *m.session
	return &clone, nil
}

func (m *MemoryStore) Save(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session == nil {
		m.session = nil
		return nil
	}

	clone := *session
	m.session = &clone
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = nil
	return nil
}
