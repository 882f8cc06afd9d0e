package publishers

import (
	"time"

	"github.com/samvad-hq/samvad-audio-relay/internal/domain"
)

// Event is the payload published downstream after an item reaches the channel.
type Event struct {
	ItemID      string    `json:"item_id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	MessageRef  int64     `json:"message_ref"`
	Destination string    `json:"destination"`
	BatchID     string    `json:"batch_id,omitempty"`
	RelayedAt   time.Time `json:"relayed_at"`
}

// NewEvent builds an Event from a stored relay record.
func NewEvent(rec domain.RelayRecord, destination string) Event {
	relayedAt := rec.CreatedAt
	if relayedAt.IsZero() {
		relayedAt = time.Now().UTC()
	}
	return Event{
		ItemID:      rec.ItemID,
		Title:       rec.Title,
		Author:      rec.Author,
		MessageRef:  rec.MessageRef,
		Destination: destination,
		RelayedAt:   relayedAt,
	}
}

// attributes are attached as message metadata by queue and topic publishers.
func (e Event) attributes() map[string]string {
	attrs := make(map[string]string, 3)
	for k, v := range map[string]string{"item_id": e.ItemID, "destination": e.Destination, "batch_id": e.BatchID} {
		if v != "" {
			attrs[k] = v
		}
	}
	return attrs
}
