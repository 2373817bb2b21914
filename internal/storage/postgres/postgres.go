// Package postgres serves the sprite, floor and quest asset database from
// PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gurgalex/SiralimAccess-sub000/internal/config"
)

// SchemaVersion is the newest migration the repository code expects.
const SchemaVersion = 2

// ErrSchema reports a database whose migrations are missing, older than
// SchemaVersion, or left dirty by a failed run.
var ErrSchema = errors.New("asset schema not ready")

// Pool is a connection pool to the asset database.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool connects to the asset database described by cfg.
//
// Precondition: cfg passed config validation.
// Postcondition: the database answered a ping, or a non-nil error is
// returned and nothing is left open.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Pool{pool: pool}, nil
}

// Health pings the database, giving up after timeout.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.pool.Ping(ctx)
}

// RequireSchema checks the migration bookkeeping written by the migrate
// tool and returns ErrSchema unless the schema is clean and current.
func (p *Pool) RequireSchema(ctx context.Context) error {
	var (
		version int64
		dirty   bool
	)
	err := p.pool.QueryRow(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%w: no migrations applied", ErrSchema)
	case err != nil:
		return fmt.Errorf("%w: reading schema_migrations: %v", ErrSchema, err)
	case dirty:
		return fmt.Errorf("%w: version %d is dirty", ErrSchema, version)
	case version < SchemaVersion:
		return fmt.Errorf("%w: version %d, need %d", ErrSchema, version, SchemaVersion)
	}
	return nil
}

// Close releases every connection. The pool is unusable afterwards.
func (p *Pool) Close() {
	p.pool.Close()
}

// DB returns the underlying pgxpool.Pool for the repositories.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}
