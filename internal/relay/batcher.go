package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/samvad-hq/samvad-audio-relay/internal/catalog"
	"github.com/samvad-hq/samvad-audio-relay/internal/domain"
	"github.com/samvad-hq/samvad-audio-relay/internal/logger"
	"github.com/samvad-hq/samvad-audio-relay/internal/metrics"
	"github.com/samvad-hq/samvad-audio-relay/internal/progress"
	"github.com/samvad-hq/samvad-audio-relay/internal/session"
)

// Batch statuses reported in Report.Status and metrics.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusRejected  = "rejected"
	StatusAborted   = "aborted"
)

// Enumerator resolves a handle and lists the catalog behind it.
type Enumerator interface {
	Resolve(ctx context.Context, handle string) (catalog.Catalog, error)
	Items(c catalog.Catalog) *catalog.Listing
}

// BatchRequest asks for every item of a catalog (optionally a range) to be relayed.
type BatchRequest struct {
	SessionKey string
	ChatID     string
	Handle     string
	Range      catalog.Range
}

// Report summarises a finished batch.
type Report struct {
	BatchID      string
	Status       string
	CatalogTitle string
	Total        int
	Processed    int
	Success      int
	Failed       int
	Skipped      int
}

// Cancelled reports whether the batch stopped before its last item.
func (r Report) Cancelled() bool { return r.Status == StatusCancelled }

// Batcher runs catalog batches one item at a time.
type Batcher struct {
	relayer  *Relayer
	enum     Enumerator
	sessions *session.Registry
	msgr     progress.Messenger
	interval time.Duration
	log      logger.Logger
	now      func() time.Time
}

// NewBatcher wires a Batcher. interval bounds how often progress is re-rendered.
func NewBatcher(relayer *Relayer, enum Enumerator, sessions *session.Registry, msgr progress.Messenger, interval time.Duration, log logger.Logger) *Batcher {
	return &Batcher{
		relayer:  relayer,
		enum:     enum,
		sessions: sessions,
		msgr:     msgr,
		interval: interval,
		log:      logger.Ensure(log),
		now:      time.Now,
	}
}

// RunFunc executes a batch whose session is already held.
type RunFunc func(ctx context.Context) (Report, error)

// Start claims req.SessionKey and returns the batch body. The session is
// held from this call until the returned RunFunc finishes, so a cancel that
// arrives before the body starts still reaches it. The RunFunc must be called.
func (b *Batcher) Start(req BatchRequest) (RunFunc, error) {
	token, release, err := b.sessions.Acquire(req.SessionKey)
	if err != nil {
		metrics.ObserveBatch(StatusRejected)
		return nil, err
	}
	return func(ctx context.Context) (Report, error) {
		defer release()
		return b.run(ctx, req, token)
	}, nil
}

// Run executes req. Only ErrDuplicateBatch and enumeration errors (ErrNotFound,
// ErrNoItems, listing failures) are returned; per-item failures are counted.
func (b *Batcher) Run(ctx context.Context, req BatchRequest) (Report, error) {
	run, err := b.Start(req)
	if err != nil {
		return Report{Status: StatusRejected}, err
	}
	return run(ctx)
}

func (b *Batcher) run(ctx context.Context, req BatchRequest, token *session.Token) (Report, error) {
	metrics.IncActiveBatches()
	defer metrics.DecActiveBatches()

	report := Report{BatchID: newBatchID()}
	status := b.sendStatus(ctx, req.ChatID, fmt.Sprintf("🔍 Fetching %s...", EscapeMarkdown(req.Handle)))

	items, title, err := b.enumerate(ctx, req)
	report.CatalogTitle = title
	if err != nil {
		report.Status = StatusAborted
		metrics.ObserveBatch(StatusAborted)
		switch {
		case errors.Is(err, domain.ErrNoItems):
			b.editStatus(ctx, req.ChatID, status, "❌ No videos")
		case errors.Is(err, domain.ErrNotFound):
			b.editStatus(ctx, req.ChatID, status, "❌ Not found")
		}
		b.log.WarnObj("batch aborted", "relay_batch", map[string]any{
			"batch_id": report.BatchID,
			"handle":   req.Handle,
			"error":    err.Error(),
		})
		return report, err
	}

	report.Total = len(items)
	b.editStatus(ctx, req.ChatID, status, fmt.Sprintf("📺 *%s*\n📊 %d videos", EscapeMarkdown(title), len(items)))
	b.log.InfoObj("batch started", "relay_batch", map[string]any{
		"batch_id": report.BatchID,
		"handle":   req.Handle,
		"range":    req.Range.String(),
		"total":    report.Total,
	})

	tracker := progress.NewTracker(b.msgr, req.ChatID, b.interval, b.now, b.log)
	tracker.Start(ctx, len(items))
	defer tracker.Finalize(context.WithoutCancel(ctx))

	report.Status = StatusCompleted
	for _, item := range items {
		if token.Cancelled() || ctx.Err() != nil {
			report.Status = StatusCancelled
			if _, err := b.msgr.SendMessage(context.WithoutCancel(ctx), req.ChatID, "🛑 Cancelled"); err != nil {
				b.log.DebugObj("cancel notice failed", "relay_batch", map[string]any{"error": err.Error()})
			}
			break
		}

		outcome := b.relayIsolated(ctx, item, report.BatchID)
		tracker.Record(ctx, outcome)
		report.Processed++
		switch outcome {
		case domain.OutcomeSuccess:
			report.Success++
		case domain.OutcomeFailed:
			report.Failed++
		default:
			report.Skipped++
		}
	}

	metrics.ObserveBatch(report.Status)
	b.log.InfoObj("batch finished", "relay_batch", report)
	return report, nil
}

func (b *Batcher) enumerate(ctx context.Context, req BatchRequest) ([]domain.CatalogItem, string, error) {
	cat, err := b.enum.Resolve(ctx, req.Handle)
	if err != nil {
		return nil, "", err
	}
	all, err := catalog.Collect(ctx, b.enum.Items(cat))
	if err != nil {
		return nil, cat.Title, err
	}
	if len(all) == 0 {
		return nil, cat.Title, fmt.Errorf("catalog %s: %w", cat.ID, domain.ErrNoItems)
	}
	items := req.Range.Apply(all)
	if len(items) == 0 {
		return nil, cat.Title, fmt.Errorf("catalog %s range %s: %w", cat.ID, req.Range, domain.ErrNoItems)
	}
	return items, cat.Title, nil
}

// relayIsolated runs one item and turns a panic into a failed outcome.
func (b *Batcher) relayIsolated(ctx context.Context, item domain.CatalogItem, batchID string) (outcome domain.Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			outcome = domain.OutcomeFailed
			metrics.ObserveItem(string(domain.OutcomeFailed), "panic")
			b.log.ErrorObj("relay item panicked", "relay_panic", map[string]any{
				"batch_id": batchID,
				"item_id":  item.ItemID,
				"position": item.Position,
				"panic":    fmt.Sprint(rec),
			})
		}
	}()
	outcome, _ = b.relayer.relay(ctx, item.ItemID, batchID)
	return outcome
}

func (b *Batcher) sendStatus(ctx context.Context, chatID, text string) int64 {
	id, err := b.msgr.SendMessage(ctx, chatID, text)
	if err != nil {
		b.log.DebugObj("status message failed", "relay_batch", map[string]any{"error": err.Error()})
		return 0
	}
	return id
}

func (b *Batcher) editStatus(ctx context.Context, chatID string, id int64, text string) {
	if id == 0 {
		return
	}
	if err := b.msgr.EditMessage(ctx, chatID, id, text); err != nil {
		b.log.DebugObj("status edit failed", "relay_batch", map[string]any{"error": err.Error()})
	}
}

func newBatchID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// EscapeMarkdown escapes the legacy Markdown control characters in s.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
