// Package posts implements the feed, profile and create screens' backend
// calls: listing posts with their authors, creating posts with an optional
// image, and registering new accounts.
package posts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/DammyCodes-all/framez-socials/internal/forms"
	"github.com/DammyCodes-all/framez-socials/internal/models"
	"github.com/DammyCodes-all/framez-socials/internal/store"
	"github.com/DammyCodes-all/framez-socials/internal/telemetry"
)

var (
	ErrNotSignedIn  = errors.New("not signed in")
	ErrMissingUser  = errors.New("user ID not found after registration")
	ErrUploadFailed = errors.New("image upload failed")
)

const (
	unknownAuthor = "Unknown"
	selfAuthor    = "You"
)

// Accounts creates auth users.
type Accounts interface {
	SignUp(ctx context.Context, email, password string) (*models.User, error)
}

// Item is a post ready for display.
type Item struct {
	models.FeedPost
	AuthorName   string
	AuthorAvatar string
}

// Service ties the post, profile and object stores together.
type Service struct {
	posts    store.PostStore
	profiles store.ProfileStore
	objects  store.ObjectStore
	accounts Accounts
	now      func() time.Time
	metrics  *telemetry.Metrics
}

// NewService creates a service. accounts may be nil when Register is unused.
func NewService(posts store.PostStore, profiles store.ProfileStore, objects store.ObjectStore, accounts Accounts) *Service {
	return &Service{
		posts:    posts,
		profiles: profiles,
		objects:  objects,
		accounts: accounts,
		now:      time.Now,
		metrics:  telemetry.GetMetrics(),
	}
}

// Feed lists every post, newest first.
func (s *Service) Feed(ctx context.Context, limit int) ([]Item, error) {
	rows, err := s.posts.ListPosts(ctx, store.ListPostsOptions{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to load feed: %w", err)
	}

	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, toItem(row, unknownAuthor, ""))
	}
	return items, nil
}

// ForUser lists the user's own posts. Posts without a joined author fall
// back to the user's profile, then to "You".
func (s *Service) ForUser(ctx context.Context, user *models.User, profile *models.Profile) ([]Item, error) {
	if user == nil {
		return nil, ErrNotSignedIn
	}

	rows, err := s.posts.ListPosts(ctx, store.ListPostsOptions{UserID: user.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to load posts for %s: %w", user.ID, err)
	}

	name, avatar := selfAuthor, ""
	if profile != nil {
		if profile.Username != "" {
			name = profile.Username
		}
		avatar = profile.AvatarURL
	}

	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, toItem(row, name, avatar))
	}
	return items, nil
}

func toItem(row *models.FeedPost, fallbackName, fallbackAvatar string) Item {
	item := Item{FeedPost: *row, AuthorName: fallbackName, AuthorAvatar: fallbackAvatar}
	if row.Author != nil {
		if row.Author.Username != "" {
			item.AuthorName = row.Author.Username
		}
		if row.Author.AvatarURL != "" {
			item.AuthorAvatar = row.Author.AvatarURL
		}
	}
	return item
}

// Create uploads image when present and inserts the post.
func (s *Service) Create(ctx context.Context, user *models.User, caption string, image *Image) (*models.Post, error) {
	if user == nil || user.ID == "" {
		return nil, ErrNotSignedIn
	}

	if err := (forms.Post{Caption: caption, HasImage: image != nil}).Validate(); err != nil {
		return nil, err
	}

	post := &models.Post{UserID: user.ID, Caption: caption}
	if image != nil {
		url, err := s.UploadImage(ctx, user.ID, image)
		if err != nil {
			return nil, err
		}
		post.ImageURL = url
	}

	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	log.Info().Str("user_id", user.ID).Str("post_id", post.ID).Bool("image", post.ImageURL != "").Msg("post created")

	return post, nil
}

// UploadImage stores image under <owner>/<unix-ms>.<ext> and returns its
// public URL.
func (s *Service) UploadImage(ctx context.Context, owner string, image *Image) (string, error) {
	if image == nil || image.Body == nil {
		return "", fmt.Errorf("%w: no image", store.ErrInvalidInput)
	}

	ext := image.Ext()
	key := fmt.Sprintf("%s/%d.%s", owner, s.now().UnixMilli(), ext)

	contentType := image.ContentType
	if contentType == "" {
		contentType = "image/" + ext
	}

	body := &countingReader{r: image.Body}
	err := s.objects.Upload(ctx, store.Object{
		Key:         key,
		ContentType: contentType,
		Size:        image.Size,
		Body:        body,
	})
	if err != nil {
		s.metrics.UploadErrorsTotal.Add(ctx, 1)
		log.Error().Err(err).Str("key", key).Msg("image upload failed")
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	s.metrics.UploadsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("content_type", contentType)))
	s.metrics.UploadBytesTotal.Add(ctx, body.n)

	return s.objects.PublicURL(key), nil
}

// Register creates the auth user and its profile row. An avatar that fails
// to upload is replaced by the default avatar rather than failing sign-up.
func (s *Service) Register(ctx context.Context, form forms.Register, avatar *Image) (*models.User, error) {
	if err := form.Validate().Err(); err != nil {
		return nil, err
	}
	if s.accounts == nil {
		return nil, errors.New("registration is not configured")
	}

	email := strings.TrimSpace(form.Email)

	avatarURL := models.DefaultAvatarURL
	if avatar != nil {
		url, err := s.UploadImage(ctx, email, avatar)
		if err != nil {
			log.Warn().Err(err).Msg("avatar upload failed, using default avatar")
		} else {
			avatarURL = url
		}
	}

	user, err := s.accounts.SignUp(ctx, email, form.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to sign up: %w", err)
	}
	if user == nil || user.ID == "" {
		return nil, ErrMissingUser
	}

	err = s.profiles.CreateProfile(ctx, &models.Profile{
		ID:        user.ID,
		Username:  strings.TrimSpace(form.Name),
		AvatarURL: avatarURL,
		Email:     email,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	log.Info().Str("user_id", user.ID).Msg("account registered")

	return user, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
