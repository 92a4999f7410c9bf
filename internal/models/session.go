package models

import (
	"crypto/sha256"
	"time"

	"github.com/mr-tron/base58"
	"golang.org/x/oauth2"
)

// User is the authenticated identity derived from a session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Session is the token bundle issued by the auth API for a signed in user.
// Values are treated as immutable once handed out.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired returns true if the access token has expired at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// ExpiresWithin returns true if the access token expires within d of now.
func (s *Session) ExpiresWithin(d time.Duration, now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Add(d).Before(s.ExpiresAt)
}

// Token returns the session as an oauth2 token for use with oauth2.Transport.
func (s *Session) Token() *oauth2.Token {
	tokenType := s.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    tokenType,
		Expiry:       s.ExpiresAt,
	}
}

// Fingerprint identifies the session in logs without exposing tokens.
func (s *Session) Fingerprint() string {
	if s == nil || s.RefreshToken == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s.RefreshToken))
	return base58.Encode(sum[:8])
}

// Identity returns the user owning the session, or nil for a nil session.
func (s *Session) Identity() *User {
	if s == nil {
		return nil
	}
	u := s.User
	return &u
}
