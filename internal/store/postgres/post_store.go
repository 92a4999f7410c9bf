package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/DammyCodes-all/framez-socials/internal/models"
	"github.com/DammyCodes-all/framez-socials/internal/store"
)

var _ store.PostStore = (*Store)(nil)

func (s *Store) ListPosts(ctx context.Context, opts store.ListPostsOptions) ([]*models.FeedPost, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT p.id::text, p.user_id::text, p.caption, p.image_url, p.created_at,
		       pr.username, pr.avatar_url
		FROM posts p
		LEFT JOIN profiles pr ON pr.id = p.user_id
		WHERE ($1 = '' OR p.user_id::text = $1)
		ORDER BY p.created_at DESC`
	args := []any{opts.UserID}

	if opts.Limit > 0 {
		query += ` LIMIT $2`
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", mapPostgresError(err))
	}

	posts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.FeedPost, error) {
		var (
			fp        models.FeedPost
			imageURL  pgtype.Text
			username  pgtype.Text
			avatarURL pgtype.Text
		)
		if err := row.Scan(&fp.ID, &fp.UserID, &fp.Caption, &imageURL, &fp.CreatedAt, &username, &avatarURL); err != nil {
			return nil, err
		}

		fp.ImageURL = imageURL.String
		if username.Valid {
			fp.Author = &models.Author{Username: username.String, AvatarURL: avatarURL.String}
		}
		return &fp, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan posts: %w", err)
	}

	return posts, nil
}

func (s *Store) CreatePost(ctx context.Context, post *models.Post) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	id, err := uuid.NewV7()
	if err != nil {
		return err
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO posts (id, user_id, caption, image_url)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING created_at
	`, id, post.UserID, post.Caption, post.ImageURL).Scan(&post.CreatedAt)
	if err != nil {
		return mapPostgresError(err)
	}

	post.ID = id.String()
	return nil
}
