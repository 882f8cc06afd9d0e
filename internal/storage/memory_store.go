package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samvad-hq/samvad-audio-relay/internal/domain"
)

// memoryStore keeps records in process memory, for development and tests.
type memoryStore struct {
	mu      sync.RWMutex
	records map[string]domain.RelayRecord
	now     func() time.Time
}

func newMemoryStore(opts Options) *memoryStore {
	return &memoryStore{
		records: make(map[string]domain.RelayRecord),
		now:     opts.Now,
	}
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() Store {
	return newMemoryStore(normalizeOptions(Options{}))
}

func (m *memoryStore) Close() error               { return nil }
func (m *memoryStore) Ping(context.Context) error { return nil }

func (m *memoryStore) Exists(_ context.Context, itemID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[itemID]
	return ok, nil
}

func (m *memoryStore) Record(_ context.Context, rec domain.RelayRecord) error {
	rec, err := prepareRecord(rec, m.now)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.ItemID]; ok {
		return fmt.Errorf("item %q: %w", rec.ItemID, ErrDuplicate)
	}
	m.records[rec.ItemID] = rec
	return nil
}

func (m *memoryStore) Get(_ context.Context, itemID string) (domain.RelayRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[itemID]
	if !ok {
		return domain.RelayRecord{}, notFound(itemID)
	}
	return rec, nil
}

func (m *memoryStore) Count(_ context.Context, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, rec := range m.records {
		if since.IsZero() || !rec.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}
