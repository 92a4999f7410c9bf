package memory

import (
	"context"
	"sync"
	"time"

	"github.com/DammyCodes-all/framez-socials/internal/models"
	"github.com/DammyCodes-all/framez-socials/internal/store"
)

// ProfileStore implements store.ProfileStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*models.Profile
}

var _ store.ProfileStore = (*ProfileStore)(nil)

// NewProfileStore creates a new in-memory profile store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[string]*models.Profile),
	}
}

func (s *ProfileStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, exists := s.profiles[userID]
	if !exists {
		return nil, store.ErrProfileNotFound
	}

	// Clone to avoid external modifications
	clone := *profile
	return &clone, nil
}

func (s *ProfileStore) CreateProfile(ctx context.Context, profile *models.Profile) error {
	if profile.ID == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[profile.ID]; exists {
		return store.ErrProfileExists
	}

	clone := *profile
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now().UTC()
	}
	s.profiles[profile.ID] = &clone

	return nil
}

// author returns the embedded author view for userID, or nil.
func (s *ProfileStore) author(userID string) *models.Author {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil
	}
	return &models.Author{Username: p.Username, AvatarURL: p.AvatarURL}
}
