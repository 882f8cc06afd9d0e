package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samvad-hq/samvad-audio-relay/internal/domain"
)

const uniqueViolation = "23505"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the Postgres-backed store.
type PostgresConfig struct {
	DSN   string
	Table string
	Now   func() time.Time
}

// pgxPool is the subset of pgxpool.Pool the store relies on; pgxmock pools satisfy it.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore persists relay records in a table with a unique item_id.
type PostgresStore struct {
	pool  pgxPool
	table string
	now   func() time.Time
}

// NewPostgresStore connects to Postgres and ensures the relay table exists.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres_dsn is required")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewPostgresStoreWithPool(pool, cfg.Table, cfg.Now)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewPostgresStoreWithPool(pool pgxPool, table string, now func() time.Time) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "relay_records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if now == nil {
		now = time.Now
	}
	return &PostgresStore{pool: pool, table: table, now: now}, nil
}

// EnsureSchema creates the relay table and its created_at index if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	item_id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	message_ref BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS %[1]s_created_at_idx ON %[1]s (created_at)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure relay schema: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Exists reports whether a record for itemID is present.
func (s *PostgresStore) Exists(ctx context.Context, itemID string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE item_id = $1)`, s.table)
	var exists bool
	if err := s.pool.QueryRow(ctx, query, itemID).Scan(&exists); err != nil {
		return false, fmt.Errorf("query relay record: %w", err)
	}
	return exists, nil
}

// Record inserts rec; a unique violation is reported as ErrDuplicate.
func (s *PostgresStore) Record(ctx context.Context, rec domain.RelayRecord) error {
	rec, err := prepareRecord(rec, s.now)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (item_id, title, author, message_ref, created_at)
VALUES ($1, $2, $3, $4, $5)`, s.table)

	_, err = s.pool.Exec(ctx, query, rec.ItemID, rec.Title, rec.Author, rec.MessageRef, rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("item %q: %w", rec.ItemID, ErrDuplicate)
		}
		return fmt.Errorf("insert relay record: %w", err)
	}
	return nil
}

// Get loads the record for itemID.
func (s *PostgresStore) Get(ctx context.Context, itemID string) (domain.RelayRecord, error) {
	query := fmt.Sprintf(`
SELECT item_id, title, author, message_ref, created_at
FROM %s WHERE item_id = $1`, s.table)

	var rec domain.RelayRecord
	err := s.pool.QueryRow(ctx, query, itemID).Scan(&rec.ItemID, &rec.Title, &rec.Author, &rec.MessageRef, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RelayRecord{}, notFound(itemID)
	}
	if err != nil {
		return domain.RelayRecord{}, fmt.Errorf("load relay record: %w", err)
	}
	return rec, nil
}

// Count returns the number of records created at or after since; a zero since counts all rows.
func (s *PostgresStore) Count(ctx context.Context, since time.Time) (int, error) {
	var (
		count int
		err   error
	)
	if since.IsZero() {
		err = s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&count)
	} else {
		err = s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE created_at >= $1`, s.table), since).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count relay records: %w", err)
	}
	return count, nil
}
