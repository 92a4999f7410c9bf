package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/DammyCodes-all/framez-socials/internal/models"
)

// Claims are the access token claims the client relies on.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// ParseAccessToken reads the claims of an access token without verifying its
// signature. The backend verifies every request; the client only needs the
// subject and expiry.
func ParseAccessToken(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to parse access token: %w", err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("access token has no subject")
	}

	return claims, nil
}

// completeSession fills the user and expiry of s from its access token when
// the backend response or the persisted copy lacks them.
func completeSession(s *models.Session) *models.Session {
	if s == nil || (s.User.ID != "" && !s.ExpiresAt.IsZero()) {
		return s
	}

	claims, err := ParseAccessToken(s.AccessToken)
	if err != nil {
		log.Debug().Err(err).Str("session", s.Fingerprint()).Msg("unable to complete session from token")
		return s
	}

	out := *s
	if out.User.ID == "" {
		out.User = models.User{ID: claims.Subject, Email: claims.Email}
	}
	if out.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}

	return &out
}
