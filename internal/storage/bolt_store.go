package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/samvad-hq/samvad-audio-relay/internal/domain"
	bolt "go.etcd.io/bbolt"
)

const recordBucket = "relay_records"

// boltStore implements a Store backed by BoltDB. Writes are serialized by
// bolt, which makes the existence check inside Record race free.
type boltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(recordBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	return &boltStore{db: db, now: opts.Now}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Ping verifies the bucket is readable.
func (b *boltStore) Ping(context.Context) error {
	return b.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(recordBucket)) == nil {
			return fmt.Errorf("relay bucket missing")
		}
		return nil
	})
}

// Exists reports whether a record for itemID is present.
func (b *boltStore) Exists(_ context.Context, itemID string) (bool, error) {
	var exists bool
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(recordBucket))
		if bucket == nil {
			return fmt.Errorf("relay bucket missing")
		}
		exists = bucket.Get([]byte(itemID)) != nil
		return nil
	})
	return exists, err
}

// Record inserts rec, failing with ErrDuplicate when the item is already stored.
func (b *boltStore) Record(_ context.Context, rec domain.RelayRecord) error {
	rec, err := prepareRecord(rec, b.now)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode relay record: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(recordBucket))
		if bucket == nil {
			return fmt.Errorf("relay bucket missing")
		}
		key := []byte(rec.ItemID)
		if bucket.Get(key) != nil {
			return fmt.Errorf("item %q: %w", rec.ItemID, ErrDuplicate)
		}
		return bucket.Put(key, raw)
	})
}

// Get loads the record for itemID.
func (b *boltStore) Get(_ context.Context, itemID string) (domain.RelayRecord, error) {
	var rec domain.RelayRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(recordBucket))
		if bucket == nil {
			return fmt.Errorf("relay bucket missing")
		}
		raw := bucket.Get([]byte(itemID))
		if raw == nil {
			return notFound(itemID)
		}
		return json.Unmarshal(raw, &rec)
	})
	return rec, err
}

// Count returns the number of records created at or after since.
func (b *boltStore) Count(_ context.Context, since time.Time) (int, error) {
	count := 0
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(recordBucket))
		if bucket == nil {
			return fmt.Errorf("relay bucket missing")
		}
		return bucket.ForEach(func(_, v []byte) error {
			if since.IsZero() {
				count++
				return nil
			}
			var rec domain.RelayRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode relay record: %w", err)
			}
			if !rec.CreatedAt.Before(since) {
				count++
			}
			return nil
		})
	})
	return count, err
}
