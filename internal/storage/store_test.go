package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-audio-relay/internal/domain"
)

func openTestStores(t *testing.T) map[string]Store {
	t.Helper()

	bolt, err := NewStore(context.Background(), TypeBBolt, Options{BBoltPath: filepath.Join(t.TempDir(), "nested", "relay.db")})
	if err != nil {
		t.Fatalf("open bolt store: %v", err)
	}
	t.Cleanup(func() { _ = bolt.Close() })

	mem, err := NewStore(context.Background(), TypeMemory, Options{})
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	return map[string]Store{"bbolt": bolt, "memory": mem}
}

func TestStoreRecordAndLookup(t *testing.T) {
	for name, store := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			exists, err := store.Exists(ctx, "dQw4w9WgXcQ")
			if err != nil || exists {
				t.Fatalf("expected missing record, exists=%v err=%v", exists, err)
			}

			rec := domain.RelayRecord{ItemID: "dQw4w9WgXcQ", Title: "Song", Author: "Artist", MessageRef: 42}
			if err := store.Record(ctx, rec); err != nil {
				t.Fatalf("Record: %v", err)
			}

			exists, err = store.Exists(ctx, "dQw4w9WgXcQ")
			if err != nil || !exists {
				t.Fatalf("expected stored record, exists=%v err=%v", exists, err)
			}

			got, err := store.Get(ctx, "dQw4w9WgXcQ")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.MessageRef != 42 || got.Title != "Song" || got.Author != "Artist" {
				t.Fatalf("unexpected record: %#v", got)
			}
			if got.CreatedAt.IsZero() {
				t.Fatalf("expected CreatedAt to be stamped")
			}
		})
	}
}

func TestStoreRejectsDuplicateRecord(t *testing.T) {
	for name, store := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := domain.RelayRecord{ItemID: "abcdefghijk", MessageRef: 1}
			if err := store.Record(ctx, rec); err != nil {
				t.Fatalf("first Record: %v", err)
			}
			rec.MessageRef = 2
			if err := store.Record(ctx, rec); !errors.Is(err, ErrDuplicate) {
				t.Fatalf("expected ErrDuplicate, got %v", err)
			}
			got, err := store.Get(ctx, rec.ItemID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.MessageRef != 1 {
				t.Fatalf("duplicate insert must not overwrite, got ref %d", got.MessageRef)
			}
		})
	}
}

func TestStoreGetMissingReturnsNotFound(t *testing.T) {
	for name, store := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(context.Background(), "missing0000")
			if !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStoreRejectsEmptyItemID(t *testing.T) {
	for name, store := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Record(context.Background(), domain.RelayRecord{ItemID: "  "}); err == nil {
				t.Fatalf("expected error for blank item id")
			}
		})
	}
}

func TestStoreCountSince(t *testing.T) {
	for name, store := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			midnight := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
			records := []domain.RelayRecord{
				{ItemID: "yesterday01", MessageRef: 1, CreatedAt: midnight.Add(-time.Hour)},
				{ItemID: "midnight001", MessageRef: 2, CreatedAt: midnight},
				{ItemID: "morning0001", MessageRef: 3, CreatedAt: midnight.Add(9 * time.Hour)},
			}
			for _, rec := range records {
				if err := store.Record(ctx, rec); err != nil {
					t.Fatalf("Record %s: %v", rec.ItemID, err)
				}
			}

			total, err := store.Count(ctx, time.Time{})
			if err != nil || total != 3 {
				t.Fatalf("expected total 3, got %d err=%v", total, err)
			}
			today, err := store.Count(ctx, midnight)
			if err != nil || today != 2 {
				t.Fatalf("expected 2 since midnight, got %d err=%v", today, err)
			}
		})
	}
}

func TestStoreConcurrentRecordSameItem(t *testing.T) {
	for name, store := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const workers = 8
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				succeeded int
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(ref int64) {
					defer wg.Done()
					err := store.Record(ctx, domain.RelayRecord{ItemID: "racecondit1", MessageRef: ref})
					if err == nil {
						mu.Lock()
						succeeded++
						mu.Unlock()
					} else if !errors.Is(err, ErrDuplicate) {
						t.Errorf("unexpected error: %v", err)
					}
				}(int64(i))
			}
			wg.Wait()
			if succeeded != 1 {
				t.Fatalf("expected exactly one winning insert, got %d", succeeded)
			}
		})
	}
}

func TestStorePing(t *testing.T) {
	for name, store := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Ping(context.Background()); err != nil {
				t.Fatalf("Ping: %v", err)
			}
		})
	}
}

func TestNewStoreRejectsUnknownType(t *testing.T) {
	if _, err := NewStore(context.Background(), "redis", Options{}); err == nil {
		t.Fatalf("expected unsupported type error")
	}
}

func TestNewStorePostgresRequiresDSN(t *testing.T) {
	if _, err := NewStore(context.Background(), " Postgres ", Options{}); err == nil {
		t.Fatalf("expected missing dsn error")
	}
}

func TestNewStoreBoltRequiresPath(t *testing.T) {
	if _, err := NewStore(context.Background(), TypeBBolt, Options{}); err == nil {
		t.Fatalf("expected missing path error")
	}
}
