package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/DammyCodes-all/framez-socials/internal/models"
	"github.com/DammyCodes-all/framez-socials/internal/store"
)

var _ store.ProfileStore = (*Store)(nil)

func (s *Store) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		p         models.Profile
		avatarURL pgtype.Text
		email     pgtype.Text
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, username, avatar_url, email, created_at
		FROM profiles
		WHERE id = $1
	`, userID).Scan(&p.ID, &p.Username, &avatarURL, &email, &p.CreatedAt)
	if err != nil {
		err = mapPostgresError(err)
		if errors.Is(err, store.ErrInvalidInput) {
			// not a UUID, so no row can match
			return nil, store.ErrProfileNotFound
		}
		return nil, err
	}

	p.AvatarURL = avatarURL.String
	p.Email = email.String

	return &p, nil
}

func (s *Store) CreateProfile(ctx context.Context, profile *models.Profile) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.pool.QueryRow(ctx, `
		INSERT INTO profiles (id, username, avatar_url, email)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
		RETURNING created_at
	`, profile.ID, profile.Username, profile.AvatarURL, profile.Email).Scan(&profile.CreatedAt)

	return mapPostgresError(err)
}
