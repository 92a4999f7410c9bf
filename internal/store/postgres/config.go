package postgres

import "time"

// StoreConfig configures the PostgreSQL data store.
type StoreConfig struct {
	Pool PoolConfig

	// AutoMigrate applies pending migrations when the store is created.
	AutoMigrate bool

	// QueryTimeout bounds each query on top of the caller's context.
	// Default: 10 seconds
	QueryTimeout time.Duration
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *StoreConfig) ApplyDefaults() {
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 10 * time.Second
	}
	// a CLI process needs only a handful of connections
	if c.Pool.MaxConns == 0 {
		c.Pool.MaxConns = 4
	}
}
