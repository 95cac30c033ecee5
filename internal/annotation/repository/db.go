package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBConfig holds database connection configuration.
type DBConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// NewConnectionPool creates a new PostgreSQL connection pool and pings it
// once with an exponential backoff retry loop, so a slow-starting database
// (the common case right after `docker compose up`) doesn't fail the whole
// service on the first attempt. Mirrors the retry-wrapped client
// construction gohan uses for its Elasticsearch connection.
func NewConnectionPool(ctx context.Context, cfg DBConfig) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.SSLMode,
	)

	parsed, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	parsed.MaxConns = int32(cfg.MaxConnections)
	parsed.MinConns = int32(cfg.MinConnections)
	parsed.MaxConnLifetime = cfg.MaxConnLifetime
	parsed.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	retryBackoff := backoff.NewExponentialBackOff()
	retryBackoff.MaxElapsedTime = 30 * time.Second

	pingErr := backoff.Retry(func() error {
		return pool.Ping(ctx)
	}, retryBackoff)
	if pingErr != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database after retries: %w", pingErr)
	}

	return pool, nil
}

// ClosePool gracefully closes the connection pool.
func ClosePool(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}
