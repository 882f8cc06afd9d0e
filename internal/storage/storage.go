// Package storage persists relay records used for deduplication.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-audio-relay/internal/domain"
)

// ErrDuplicate is returned when a record for the same item already exists.
var ErrDuplicate = errors.New("duplicate relay record")

// Store tracks relayed items. Implementations must be safe for concurrent use
// and must reject a second Record for the same item id.
type Store interface {
	Close() error
	Ping(ctx context.Context) error
	Exists(ctx context.Context, itemID string) (bool, error)
	Record(ctx context.Context, rec domain.RelayRecord) error
	Get(ctx context.Context, itemID string) (domain.RelayRecord, error)
	Count(ctx context.Context, since time.Time) (int, error)
}

// Options carries backend specific settings.
type Options struct {
	BBoltPath     string
	PostgresDSN   string
	PostgresTable string
	Now           func() time.Time
}

const (
	TypeBBolt    = "bbolt"
	TypePostgres = "postgres"
	TypeMemory   = "memory"
)

// NewStore creates the configured storage backend.
func NewStore(ctx context.Context, typ string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case TypeMemory:
		return newMemoryStore(opts), nil
	case "", TypeBBolt:
		if strings.TrimSpace(opts.BBoltPath) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(opts.BBoltPath, opts)
	case TypePostgres:
		store, err := NewPostgresStore(ctx, PostgresConfig{
			DSN:   opts.PostgresDSN,
			Table: opts.PostgresTable,
			Now:   opts.Now,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}

// prepareRecord validates a record and stamps CreatedAt when missing.
func prepareRecord(rec domain.RelayRecord, now func() time.Time) (domain.RelayRecord, error) {
	rec.ItemID = strings.TrimSpace(rec.ItemID)
	if rec.ItemID == "" {
		return rec, fmt.Errorf("relay record item id is empty")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now().UTC()
	}
	return rec, nil
}

// notFound wraps domain.ErrNotFound with the missing item id.
func notFound(itemID string) error {
	return fmt.Errorf("relay record %q: %w", itemID, domain.ErrNotFound)
}
