package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/DammyCodes-all/framez-socials/internal/models"
)

const (
	fileVersion = 1
	fileName    = "session.json"
)

type sessionFile struct {
	Version int             `json:"version"`
	SavedAt time.Time       `json:"saved_at"`
	Session *models.Session `json:"session"`
}

// FileStore keeps the session in a single JSON file readable only by the
// current user.
type FileStore struct {
	mu      sync.Mutex
	baseDir string
}

var _ Storage = (*FileStore)(nil)

// NewFileStore creates a file backed store.
// If baseDir is empty, uses ~/.framez/
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".framez")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	log.Debug().Str("baseDir", baseDir).Msg("session store initialized")

	return &FileStore{baseDir: baseDir}, nil
}

// Path returns the location of the session file.
func (s *FileStore) Path() string {
	return filepath.Join(s.baseDir, fileName)
}

func (s *FileStore) Load(ctx context.Context) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var f sessionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}

	if f.Version != fileVersion {
		return nil, fmt.Errorf("unsupported session file version %d", f.Version)
	}

	if f.Session == nil || f.Session.RefreshToken == "" {
		return nil, ErrNoSession
	}

	return f.Session, nil
}

// Save writes the session atomically.
func (s *FileStore) Save(ctx context.Context, session *models.Session) error {
	if session == nil {
		return s.Clear(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(sessionFile{
		Version: fileVersion,
		SavedAt: time.Now().UTC(),
		Session: session,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	path := s.Path()
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename session file: %w", err)
	}

	log.Debug().Str("session", session.Fingerprint()).Msg("session persisted")

	return nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}

	return nil
}
