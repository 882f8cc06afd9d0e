package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-audio-relay/internal/domain"
)

type failingCounter struct{}

func (failingCounter) Count(context.Context, time.Time) (int, error) {
	return 0, errors.New("offline")
}

func TestStartOfDayKeepsLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2024, 5, 10, 1, 15, 0, 0, loc)

	got := StartOfDay(now)
	want := time.Date(2024, 5, 10, 0, 0, 0, 0, loc)
	if !got.Equal(want) || got.Location() != loc {
		t.Fatalf("StartOfDay = %v, want %v", got, want)
	}
}

func TestCountStats(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2024, 5, 10, 18, 0, 0, 0, time.UTC)
	for i, at := range []time.Time{now.Add(-48 * time.Hour), now.Add(-time.Hour), now} {
		rec := domain.RelayRecord{ItemID: string(rune('a' + i)), MessageRef: int64(i + 1), CreatedAt: at}
		if err := store.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	stats, err := CountStats(ctx, store, now)
	if err != nil {
		t.Fatalf("CountStats: %v", err)
	}
	if stats.Total != 3 || stats.Today != 2 {
		t.Fatalf("unexpected stats %#v", stats)
	}

	if _, err := CountStats(ctx, failingCounter{}, now); err == nil {
		t.Fatalf("expected error from failing counter")
	}
}
