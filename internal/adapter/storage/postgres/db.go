package postgres

import (
	"context"
	"fmt"

	"ledger-core/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Pool is the subset of pgxpool.Pool the adapters use. pgxmock's pool
// interface satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// NewPool creates a PostgreSQL connection pool using pgx.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("dbname", cfg.DBName).
		Int32("max_conns", cfg.MaxConns).
		Msg("PostgreSQL connection pool established")

	return pool, nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS events (
		global_seq   BIGSERIAL PRIMARY KEY,
		aggregate_id UUID        NOT NULL,
		version      BIGINT      NOT NULL,
		event_type   TEXT        NOT NULL,
		payload      JSONB       NOT NULL,
		metadata     JSONB,
		occurred_at  TIMESTAMPTZ NOT NULL,
		UNIQUE (aggregate_id, version)
	)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		aggregate_id UUID PRIMARY KEY,
		version      BIGINT      NOT NULL,
		state        JSONB       NOT NULL,
		taken_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS account_balances (
		account_id UUID   NOT NULL,
		asset_code TEXT   NOT NULL,
		balance    BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (account_id, asset_code)
	)`,
	`CREATE TABLE IF NOT EXISTS pool_directory (
		pool_id        UUID PRIMARY KEY,
		base_currency  TEXT    NOT NULL,
		quote_currency TEXT    NOT NULL,
		base_reserve   NUMERIC NOT NULL DEFAULT 0,
		quote_reserve  NUMERIC NOT NULL DEFAULT 0,
		fee_rate       NUMERIC NOT NULL DEFAULT 0,
		spread_bps     DOUBLE PRECISION NOT NULL DEFAULT 0,
		is_active      BOOLEAN NOT NULL DEFAULT TRUE
	)`,
}

// EnsureSchema creates the storage tables when they do not exist yet.
func EnsureSchema(ctx context.Context, pool Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
