// Package postgres implements the data store directly on PostgreSQL, for
// self-hosted deployments and tests that bypass the REST API.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Store implements store.ProfileStore and store.PostStore.
type Store struct {
	pool *pgxpool.Pool
	cfg  StoreConfig
}

// NewStore connects to PostgreSQL and optionally migrates the schema.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	cfg.ApplyDefaults()

	pool, err := openPool(ctx, cfg.Pool)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	log.Debug().Int32("max_conns", cfg.Pool.MaxConns).Msg("postgres store ready")

	return &Store{pool: pool, cfg: cfg}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.QueryTimeout)
}
