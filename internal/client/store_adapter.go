package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/DammyCodes-all/framez-socials/internal/models"
	"github.com/DammyCodes-all/framez-socials/internal/store"
)

const (
	feedSelect   = "id,caption,image_url,user_id,created_at,profiles(username,avatar_url)"
	singleObject = "application/vnd.pgrst.object+json"
)

// anonTokenSource authorizes as the project's anonymous role when no user
// token is available.
type anonTokenSource struct {
	src oauth2.TokenSource
	key string
}

func (a anonTokenSource) Token() (*oauth2.Token, error) {
	if a.src != nil {
		tok, err := a.src.Token()
		if err == nil && tok != nil {
			return tok, nil
		}
		if err != nil {
			log.Debug().Err(err).Msg("no user token, using anonymous key")
		}
	}
	return &oauth2.Token{AccessToken: a.key, TokenType: "Bearer"}, nil
}

func (c *Client) authorizedHTTP(ts oauth2.TokenSource) *http.Client {
	return &http.Client{
		Timeout: c.cfg.Timeout,
		Transport: &oauth2.Transport{
			Source: anonTokenSource{src: ts, key: c.cfg.AnonKey},
			Base:   c.cached,
		},
	}
}

// DataStore implements store.ProfileStore and store.PostStore over the REST
// data API. Row level security applies as the user behind the token source.
type DataStore struct {
	client *Client
	http   *http.Client
}

var (
	_ store.ProfileStore = (*DataStore)(nil)
	_ store.PostStore    = (*DataStore)(nil)
)

// DataStore returns a store that authorizes requests with ts.
func (c *Client) DataStore(ts oauth2.TokenSource) *DataStore {
	return &DataStore{client: c, http: c.authorizedHTTP(ts)}
}

func (d *DataStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := d.client.do(ctx, d.http, request{
		method: http.MethodGet,
		path:   "/rest/v1/profiles",
		query:  url.Values{"id": {"eq." + userID}, "select": {"*"}},
		header: http.Header{"Accept": {singleObject}},
	}, &profile)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, store.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &profile, nil
}

func (d *DataStore) CreateProfile(ctx context.Context, profile *models.Profile) error {
	err := d.client.do(ctx, d.http, request{
		method: http.MethodPost,
		path:   "/rest/v1/profiles",
		header: http.Header{"Prefer": {"return=minimal"}},
		body: map[string]string{
			"id":         profile.ID,
			"username":   profile.Username,
			"avatar_url": profile.AvatarURL,
			"email":      profile.Email,
		},
	}, nil)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return store.ErrProfileExists
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return nil
}

// rowID accepts both numeric and string primary keys.
type rowID string

func (r *rowID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = rowID(s)
		return nil
	}
	if string(b) == "null" {
		*r = ""
		return nil
	}
	*r = rowID(b)
	return nil
}

type postRow struct {
	ID        rowID          `json:"id"`
	UserID    string         `json:"user_id"`
	Caption   string         `json:"caption"`
	ImageURL  *string        `json:"image_url"`
	CreatedAt time.Time      `json:"created_at"`
	Author    *models.Author `json:"profiles"`
}

func (r postRow) feedPost() *models.FeedPost {
	p := &models.FeedPost{
		Post: models.Post{
			ID:        string(r.ID),
			UserID:    r.UserID,
			Caption:   r.Caption,
			CreatedAt: r.CreatedAt,
		},
		Author: r.Author,
	}
	if r.ImageURL != nil {
		p.ImageURL = *r.ImageURL
	}
	return p
}

func (d *DataStore) ListPosts(ctx context.Context, opts store.ListPostsOptions) ([]*models.FeedPost, error) {
	query := url.Values{
		"select": {feedSelect},
		"order":  {"created_at.desc"},
	}
	if opts.UserID != "" {
		query.Set("user_id", "eq."+opts.UserID)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}

	var rows []postRow
	err := d.client.do(ctx, d.http, request{
		method: http.MethodGet,
		path:   "/rest/v1/posts",
		query:  query,
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	posts := make([]*models.FeedPost, 0, len(rows))
	for _, row := range rows {
		posts = append(posts, row.feedPost())
	}

	return posts, nil
}

// CreatePost inserts post and fills in the server assigned ID and timestamp.
func (d *DataStore) CreatePost(ctx context.Context, post *models.Post) error {
	body := map[string]any{
		"caption": post.Caption,
		"user_id": post.UserID,
	}
	if post.ImageURL != "" {
		body["image_url"] = post.ImageURL
	} else {
		body["image_url"] = nil
	}

	var rows []postRow
	err := d.client.do(ctx, d.http, request{
		method: http.MethodPost,
		path:   "/rest/v1/posts",
		header: http.Header{"Prefer": {"return=representation"}},
		body:   body,
	}, &rows)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}

	if len(rows) > 0 {
		post.ID = string(rows[0].ID)
		post.CreatedAt = rows[0].CreatedAt
	}

	return nil
}
