package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/DammyCodes-all/framez-socials/internal/models"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	RefreshToken string        `json:"refresh_token"`
	User         *userResponse `json:"user"`

	// sign up without auto-confirm returns the bare user
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (t *tokenResponse) session(now time.Time) *models.Session {
	if t.AccessToken == "" {
		return nil
	}

	s := &models.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
	}

	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0)
	case t.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}

	if t.User != nil {
		s.User = models.User{ID: t.User.ID, Email: t.User.Email}
	}

	return s
}

func (t *tokenResponse) user() *models.User {
	switch {
	case t.User != nil:
		return &models.User{ID: t.User.ID, Email: t.User.Email}
	case t.ID != "":
		return &models.User{ID: t.ID, Email: t.Email}
	}
	return nil
}

func (c *Client) authHTTP() *http.Client {
	return &http.Client{Timeout: c.cfg.Timeout, Transport: c.transport}
}

// SignInWithPassword exchanges an email and password for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	var resp tokenResponse
	err := c.do(ctx, c.authHTTP(), request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   credentials{Email: email, Password: password},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}

	s := resp.session(time.Now())
	if s == nil {
		return nil, fmt.Errorf("failed to sign in: response carried no session")
	}

	return s, nil
}

// SignUp registers a new account. The session is nil when the project
// requires email confirmation before signing in.
func (c *Client) SignUp(ctx context.Context, email, password string) (*models.Session, *models.User, error) {
	var resp tokenResponse
	err := c.do(ctx, c.authHTTP(), request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body:   credentials{Email: email, Password: password},
	}, &resp)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign up: %w", err)
	}

	user := resp.user()
	if user == nil {
		return nil, nil, fmt.Errorf("failed to sign up: response carried no user")
	}

	return resp.session(time.Now()), user, nil
}

// RefreshSession trades a refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	var resp tokenResponse
	err := c.do(ctx, c.authHTTP(), request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": refreshToken},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	s := resp.session(time.Now())
	if s == nil {
		return nil, fmt.Errorf("failed to refresh session: response carried no session")
	}

	return s, nil
}

// Logout revokes every refresh token of the user owning accessToken.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	err := c.do(ctx, c.authHTTP(), request{
		method: http.MethodPost,
		path:   "/auth/v1/logout",
		query:  url.Values{"scope": {"global"}},
		header: http.Header{"Authorization": {"Bearer " + accessToken}},
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}

	return nil
}
