// Package db provides the pgxpool connection pool used by every storage
// package in the memory core, wired through the retry/backoff helpers in
// internal/errors the way the teacher's internal/di/container_builder.go
// wires its Postgres pool.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avneeshrai07/Agent-Memory-System/internal/config"
	"github.com/avneeshrai07/Agent-Memory-System/internal/errors"
	"github.com/avneeshrai07/Agent-Memory-System/internal/logging"
)

// Pool wraps a pgxpool.Pool with the health-check-on-acquire behavior and
// connect-time retry the spec requires (§5: "the storage layer must recover
// from a transient connection failure without operator intervention").
type Pool struct {
	*pgxpool.Pool
	logger logging.Logger
}

// Open establishes the pool, retrying with exponential backoff+jitter per
// errors.PoolRetryConfig, and verifies connectivity with a Ping before
// returning.
func Open(ctx context.Context, cfg config.RuntimeConfig, logger logging.Logger) (*Pool, error) {
	logger = logging.OrNop(logger)

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("db: parse dsn: %w", err)
	}
	if cfg.DBMaxConns > 0 {
		poolCfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns > 0 {
		poolCfg.MinConns = cfg.DBMinConns
	}
	if cfg.DBAcquireTimeout > 0 {
		poolCfg.HealthCheckPeriod = cfg.DBAcquireTimeout
	}

	pool, err := errors.RetryWithResultAndLog(ctx, errors.PoolRetryConfig(),
		func(ctx context.Context) (*pgxpool.Pool, error) {
			p, err := pgxpool.NewWithConfig(ctx, poolCfg)
			if err != nil {
				return nil, errors.MarkTransient(fmt.Errorf("db: open pool: %w", err))
			}
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := p.Ping(pingCtx); err != nil {
				p.Close()
				return nil, errors.MarkTransient(fmt.Errorf("db: ping: %w", err))
			}
			return p, nil
		},
		logger,
	)
	if err != nil {
		return nil, err
	}

	logger.Info("db: connected, max_conns=%d min_conns=%d", poolCfg.MaxConns, poolCfg.MinConns)
	return &Pool{Pool: pool, logger: logger}, nil
}

// Acquire wraps pgxpool's Acquire with a health check: a connection returned
// from the pool is pinged before being handed to the caller so a dropped
// connection surfaces as a clean retryable error instead of a query-time
// failure deep in caller code.
func (p *Pool) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		return nil, errors.MarkTransient(fmt.Errorf("db: acquire: %w", err))
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Release()
		return nil, errors.MarkTransient(fmt.Errorf("db: acquired connection failed health check: %w", err))
	}
	return conn, nil
}

// Close releases all pooled connections.
func (p *Pool) Close() {
	if p == nil || p.Pool == nil {
		return
	}
	p.Pool.Close()
}
