package storage

import (
	"context"
	"fmt"
	"time"
)

// Stats summarises the relay records kept by a Store.
type Stats struct {
	Total int `json:"total"`
	Today int `json:"today"`
}

// Counter is the part of Store that Stats needs.
type Counter interface {
	Count(ctx context.Context, since time.Time) (int, error)
}

// StartOfDay returns midnight of now's day in now's location.
func StartOfDay(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// CountStats returns the total record count and the count since local midnight.
func CountStats(ctx context.Context, c Counter, now time.Time) (Stats, error) {
	total, err := c.Count(ctx, time.Time{})
	if err != nil {
		return Stats{}, fmt.Errorf("count total: %w", err)
	}
	today, err := c.Count(ctx, StartOfDay(now))
	if err != nil {
		return Stats{}, fmt.Errorf("count today: %w", err)
	}
	return Stats{Total: total, Today: today}, nil
}
