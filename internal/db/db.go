package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool sizing for the callback workload: transactions are short (one invoice
// lock, three writes) and concurrency is bounded by the gateway's delivery
// fan-out, so a small pool suffices.
const (
	maxConns        = 10
	minConns        = 2
	connMaxLifetime = time.Hour
	connMaxIdleTime = 30 * time.Minute
	connectTimeout  = 5 * time.Second
)

// Connect opens a pgx pool against connString and verifies it with a ping, so
// a bad DATABASE_URL fails at startup instead of on the first callback.
func Connect(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolCfg.MaxConns = maxConns
	poolCfg.MinConns = minConns
	poolCfg.MaxConnLifetime = connMaxLifetime
	poolCfg.MaxConnIdleTime = connMaxIdleTime

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return pool, nil
}
