package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
)

// NewPool opens the Postgres read-model pool. The read model holds invoices,
// revenues, and time entries maintained by upstream ingestion; scribo only
// ever reads from it.
func NewPool(ctx context.Context, logger arbor.ILogger, config *common.DatabaseConfig, connectTimeout time.Duration) (*pgxpool.Pool, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("database DSN not configured (set database.dsn or DATABASE_URL)")
	}

	poolConfig, err := pgxpool.ParseConfig(config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = int32(config.MaxConns)
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	logger.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Int("max_conns", int(poolConfig.MaxConns)).
		Msg("Postgres read-model pool initialized")

	return pool, nil
}
