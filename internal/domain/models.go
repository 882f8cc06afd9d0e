package domain

import "time"

// Domain contains core models shared by the relay pipeline.

// RelayRecord is the persisted proof that an item reached the destination channel.
type RelayRecord struct {
	ItemID     string    `json:"item_id"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	MessageRef int64     `json:"message_ref"`
	CreatedAt  time.Time `json:"created_at"`
}

// CatalogItem is one entry produced while enumerating a catalog.
type CatalogItem struct {
	ItemID   string
	Position int
	Title    string
}

// Outcome is the per-item result recorded by the pipeline.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)
