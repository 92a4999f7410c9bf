package store

import (
	"context"
	"errors"
	"io"

	"github.com/DammyCodes-all/framez-socials/internal/models"
)

// Sentinel errors for common error conditions
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("profile already exists")
	ErrPostNotFound    = errors.New("post not found")
	ErrObjectExists    = errors.New("object already exists")
	ErrInvalidInput    = errors.New("invalid input")
)

// ProfileStore reads and writes the profiles table.
type ProfileStore interface {
	// GetProfile returns ErrProfileNotFound when no row matches userID.
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	CreateProfile(ctx context.Context, profile *models.Profile) error
}

// ListPostsOptions filters ListPosts. The zero value lists every post.
type ListPostsOptions struct {
	UserID string
	Limit  int
}

// PostStore reads and writes the posts table.
type PostStore interface {
	// ListPosts returns posts joined with their author, newest first.
	ListPosts(ctx context.Context, opts ListPostsOptions) ([]*models.FeedPost, error)
	CreatePost(ctx context.Context, post *models.Post) error
}

// Object is an upload payload for an ObjectStore.
type Object struct {
	Key         string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ObjectStore stores uploaded media in a public bucket.
type ObjectStore interface {
	// Upload never overwrites, an existing key returns ErrObjectExists.
	Upload(ctx context.Context, obj Object) error
	PublicURL(key string) string
}
