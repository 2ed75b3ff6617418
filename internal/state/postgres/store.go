// Package postgres persists the processed set in a Postgres table.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/drhp-archiver/internal/archiver"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "processed_urls"

// Config controls the Postgres connection pool used for processed URLs.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// Store implements archiver.StateStore on a single-column table.
type Store struct {
	pool  pool
	table string
}

// New connects to Postgres and creates the table if it does not exist.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, &archiver.ConfigError{Field: "state.postgres.dsn", Err: fmt.Errorf("required for postgres state")}
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, &archiver.ConfigError{Field: "state.postgres.dsn", Err: err}
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewWithPool(p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: p, table: table}, nil
}

// EnsureSchema creates the backing table.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	url TEXT PRIMARY KEY,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Load reads every stored URL. An empty table yields an empty set.
func (s *Store) Load(ctx context.Context) (archiver.ProcessedSet, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT url FROM %s", s.table))
	if err != nil {
		return nil, fmt.Errorf("query processed urls: %w", err)
	}
	defer rows.Close()

	set := archiver.NewProcessedSet()
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, &archiver.StateCorruptionError{Source: s.table, Err: err}
		}
		set.Add(u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processed urls: %w", err)
	}
	return set, nil
}

// Save replaces the table contents with set inside one transaction.
func (s *Store) Save(ctx context.Context, set archiver.ProcessedSet) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", s.table)); err != nil {
		return rollback(ctx, tx, fmt.Errorf("clear processed urls: %w", err))
	}
	if set.Len() > 0 {
		query := fmt.Sprintf("INSERT INTO %s (url) SELECT unnest($1::text[])", s.table)
		if _, err := tx.Exec(ctx, query, set.Sorted()); err != nil {
			return rollback(ctx, tx, fmt.Errorf("insert processed urls: %w", err))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func rollback(ctx context.Context, tx pgx.Tx, cause error) error {
	if err := tx.Rollback(ctx); err != nil {
		return fmt.Errorf("%w (rollback: %v)", cause, err)
	}
	return cause
}
