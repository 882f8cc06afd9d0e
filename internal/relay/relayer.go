// Package relay drives items from the extraction service into the destination channel.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-audio-relay/internal/domain"
	"github.com/samvad-hq/samvad-audio-relay/internal/logger"
	"github.com/samvad-hq/samvad-audio-relay/internal/metrics"
	"github.com/samvad-hq/samvad-audio-relay/internal/storage"
	"github.com/samvad-hq/samvad-audio-relay/pkg/extractor"
	"github.com/samvad-hq/samvad-audio-relay/pkg/publishers"
	"github.com/samvad-hq/samvad-audio-relay/pkg/telegram"
)

// Store is the dedup surface the relayer needs.
type Store interface {
	Exists(ctx context.Context, itemID string) (bool, error)
	Record(ctx context.Context, rec domain.RelayRecord) error
}

// Fetcher obtains a downloadable audio reference for an item.
type Fetcher interface {
	Fetch(ctx context.Context, itemID string) (extractor.Result, error)
	Cleanup(filename string)
}

// Sender posts audio into a chat.
type Sender interface {
	SendAudio(ctx context.Context, chatID string, up telegram.AudioUpload) (telegram.Message, error)
}

// EventPublisher fans relay events out to downstream sinks.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
	Size() int
}

// Relayer runs the single-item flow shared by batches and direct requests.
type Relayer struct {
	store       Store
	fetcher     Fetcher
	sender      Sender
	events      EventPublisher
	destination string
	log         logger.Logger
	now         func() time.Time
}

// RelayerOption customises a Relayer.
type RelayerOption func(*Relayer)

// WithEvents publishes a RelayEvent after every recorded relay.
func WithEvents(p EventPublisher) RelayerOption {
	return func(r *Relayer) { r.events = p }
}

// WithLogger sets the relayer logger.
func WithLogger(log logger.Logger) RelayerOption {
	return func(r *Relayer) { r.log = logger.Ensure(log) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) RelayerOption {
	return func(r *Relayer) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRelayer builds a Relayer that posts into destination.
func NewRelayer(store Store, fetcher Fetcher, sender Sender, destination string, opts ...RelayerOption) *Relayer {
	r := &Relayer{
		store:       store,
		fetcher:     fetcher,
		sender:      sender,
		destination: destination,
		log:         logger.NopLogger{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Relay moves one item into the destination channel. The returned error
// carries the domain sentinel behind any non-success outcome.
func (r *Relayer) Relay(ctx context.Context, itemID string) (domain.Outcome, error) {
	return r.relay(ctx, itemID, "")
}

func (r *Relayer) relay(ctx context.Context, itemID, batchID string) (domain.Outcome, error) {
	started := r.now()
	outcome, err := r.run(ctx, itemID, batchID)

	reason := Reason(err)
	metrics.ObserveItem(string(outcome), reason)

	fields := map[string]any{
		"item_id":     itemID,
		"outcome":     outcome,
		"reason":      reason,
		"duration_ms": r.now().Sub(started).Milliseconds(),
	}
	if batchID != "" {
		fields["batch_id"] = batchID
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	if outcome == domain.OutcomeFailed {
		r.log.WarnObj("relay item failed", "relay_result", fields)
	} else {
		r.log.InfoObj("relay item done", "relay_result", fields)
	}
	return outcome, err
}

func (r *Relayer) run(ctx context.Context, itemID, batchID string) (domain.Outcome, error) {
	exists, err := r.store.Exists(ctx, itemID)
	if err != nil {
		return domain.OutcomeFailed, fmt.Errorf("item %s: %w: %w", itemID, domain.ErrStore, err)
	}
	if exists {
		return domain.OutcomeSkipped, fmt.Errorf("item %s: %w", itemID, domain.ErrAlreadyRelayed)
	}

	fetchStarted := r.now()
	res, err := r.fetcher.Fetch(ctx, itemID)
	metrics.ObserveExtraction(string(domain.OutcomeFor(err)), r.now().Sub(fetchStarted))
	if err != nil {
		return domain.OutcomeFor(err), err
	}

	msg, err := r.sender.SendAudio(ctx, r.destination, telegram.AudioUpload{
		URL:       res.DownloadURL,
		Caption:   Caption(res.Title, res.Author),
		Title:     res.Title,
		Performer: res.Author,
		Duration:  res.Duration,
	})
	r.fetcher.Cleanup(res.Filename)
	if err != nil {
		return domain.OutcomeFailed, fmt.Errorf("item %s: %w: %w", itemID, domain.ErrRelayFailed, err)
	}

	rec := domain.RelayRecord{
		ItemID:     itemID,
		Title:      res.Title,
		Author:     res.Author,
		MessageRef: msg.MessageID,
		CreatedAt:  r.now().UTC(),
	}
	if err := r.store.Record(ctx, rec); err != nil {
		if !errors.Is(err, storage.ErrDuplicate) {
			return domain.OutcomeFailed, fmt.Errorf("item %s: %w: %w", itemID, domain.ErrStore, err)
		}
		r.log.WarnObj("relay record already present", "relay_duplicate", map[string]any{
			"item_id":     itemID,
			"message_ref": msg.MessageID,
		})
		return domain.OutcomeSuccess, nil
	}

	r.publish(ctx, rec, batchID)
	return domain.OutcomeSuccess, nil
}

func (r *Relayer) publish(ctx context.Context, rec domain.RelayRecord, batchID string) {
	if r.events == nil || r.events.Size() == 0 {
		return
	}
	evt := publishers.NewEvent(rec, r.destination)
	evt.BatchID = batchID

	delivered, err := r.events.Publish(ctx, evt)
	metrics.ObservePublish(delivered, r.events.Size()-delivered)
	if err != nil {
		r.log.WarnObj("relay event publish failed", "relay_event", map[string]any{
			"item_id":   rec.ItemID,
			"delivered": delivered,
			"error":     err.Error(),
		})
	}
}

// Caption formats the audio caption shown in the channel.
func Caption(title, author string) string {
	return fmt.Sprintf("🎵 %s\n👤 %s", title, author)
}

// Reason refines domain.Reason by separating channel-side rejections from
// transport failures.
func Reason(err error) string {
	var apiErr *telegram.APIError
	if errors.Is(err, domain.ErrRelayFailed) && errors.As(err, &apiErr) {
		return "relay_rejected"
	}
	return domain.Reason(err)
}
