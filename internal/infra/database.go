// Package infra opens connections to the external systems the service uses.
package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrMissingURL is returned when a connector is asked to dial an empty address.
var ErrMissingURL = errors.New("connection url is required")

const (
	pgMaxConnIdleTime    = 5 * time.Minute
	pgHealthCheckPeriod  = 30 * time.Second
	pgDefaultMaxConns    = 10
	pgApplicationNameKey = "application_name"
)

// NewPostgresPool opens a pgx pool and pings it. Pool size can be tuned with
// pool_max_conns in the URL; otherwise it defaults to ten connections.
func NewPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("postgres: %w", ErrMissingURL)
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if !strings.Contains(url, "pool_max_conns") {
		cfg.MaxConns = pgDefaultMaxConns
	}
	cfg.MaxConnIdleTime = pgMaxConnIdleTime
	cfg.HealthCheckPeriod = pgHealthCheckPeriod
	if _, ok := cfg.ConnConfig.RuntimeParams[pgApplicationNameKey]; !ok {
		cfg.ConnConfig.RuntimeParams[pgApplicationNameKey] = "wallet-ledger"
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}
