package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is the subset of *pgxpool.Pool the postgres backend uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS alert_instance_state (
	instance_id text PRIMARY KEY,
	state       jsonb NOT NULL,
	updated_at  timestamptz NOT NULL
)`
	upsertSQL = `INSERT INTO alert_instance_state (instance_id, state, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (instance_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`
	selectSQL = `SELECT instance_id, state, updated_at FROM alert_instance_state ORDER BY instance_id`
)

// PostgresBackend keeps one row per instance in alert_instance_state.
type PostgresBackend struct {
	pool Pool
}

// NewPostgresBackend connects to dsn and makes sure the table exists.
func NewPostgresBackend(ctx context.Context, dsn string) (*PostgresBackend, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	b, err := NewPostgresBackendWithPool(ctx, p)
	if err != nil {
		p.Close()
		return nil, err
	}
	return b, nil
}

// NewPostgresBackendWithPool uses an existing pool and makes sure the table exists.
func NewPostgresBackendWithPool(ctx context.Context, p Pool) (*PostgresBackend, error) {
	if _, err := p.Exec(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("store: create table: %w", err)
	}
	return &PostgresBackend{pool: p}, nil
}

// Load reads every row.
func (b *PostgresBackend) Load(ctx context.Context) ([]Entry, error) {
	rows, err := b.pool.Query(ctx, selectSQL)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e   Entry
			raw []byte
		)
		if err := rows.Scan(&e.InstanceID, &raw, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		if err := json.Unmarshal(raw, &e.State); err != nil {
			return nil, fmt.Errorf("store: decode state of %q: %w", e.InstanceID, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: rows: %w", err)
	}
	return out, nil
}

// Save upserts e.
func (b *PostgresBackend) Save(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e.State)
	if err != nil {
		return fmt.Errorf("store: encode state: %w", err)
	}
	if _, err := b.pool.Exec(ctx, upsertSQL, e.InstanceID, raw, e.UpdatedAt); err != nil {
		return fmt.Errorf("store: upsert %q: %w", e.InstanceID, err)
	}
	return nil
}

// Close closes the pool.
func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}
