package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DammyCodes-all/framez-socials/internal/models"
	"github.com/DammyCodes-all/framez-socials/internal/store"
)

// PostStore implements store.PostStore using in-memory storage. Authors are
// joined from profiles when it is non-nil.
type PostStore struct {
	mu       sync.RWMutex
	posts    []*models.Post
	profiles *ProfileStore
}

var _ store.PostStore = (*PostStore)(nil)

// NewPostStore creates a new in-memory post store.
func NewPostStore(profiles *ProfileStore) *PostStore {
	return &PostStore{profiles: profiles}
}

func (s *PostStore) ListPosts(ctx context.Context, opts store.ListPostsOptions) ([]*models.FeedPost, error) {
	s.mu.RLock()
	matched := make([]models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if opts.UserID != "" && p.UserID != opts.UserID {
			continue
		}
		matched = append(matched, *p)
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]*models.FeedPost, 0, len(matched))
	for _, p := range matched {
		fp := &models.FeedPost{Post: p}
		if s.profiles != nil {
			fp.Author = s.profiles.author(p.UserID)
		}
		out = append(out, fp)
	}

	return out, nil
}

func (s *PostStore) CreatePost(ctx context.Context, post *models.Post) error {
	if post.UserID == "" {
		return store.ErrInvalidInput
	}

	id, err := uuid.NewV7()
	if err != nil {
		return err
	}

	post.ID = id.String()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *post
	s.posts = append(s.posts, &clone)

	return nil
}
