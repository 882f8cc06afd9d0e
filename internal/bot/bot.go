// Package bot turns Telegram updates into relay commands.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/samvad-audio-relay/internal/catalog"
	"github.com/samvad-hq/samvad-audio-relay/internal/domain"
	"github.com/samvad-hq/samvad-audio-relay/internal/logger"
	"github.com/samvad-hq/samvad-audio-relay/internal/metrics"
	"github.com/samvad-hq/samvad-audio-relay/internal/relay"
	"github.com/samvad-hq/samvad-audio-relay/internal/storage"
	"github.com/samvad-hq/samvad-audio-relay/pkg/telegram"
	"github.com/samvad-hq/samvad-audio-relay/pkg/youtube"
)

const (
	helpText = "🎵 *YouTube Music Bot*\n\n" +
		"• Send YouTube URL\n" +
		"• `/channel @name`\n" +
		"• `/channel @name | 10`\n" +
		"• `/channel @name | 10-50`\n" +
		"• `/stats` • `/cancel`"

	pollRetryDelay = 3 * time.Second
)

// API is the Telegram surface the bot drives.
type API interface {
	GetUpdates(ctx context.Context, offset int64, poll time.Duration) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID, text, parseMode string) (telegram.Message, error)
	EditMessageText(ctx context.Context, chatID string, messageID int64, text, parseMode string) error
	CopyMessage(ctx context.Context, chatID, fromChatID string, messageID int64) (int64, error)
}

// ItemRelayer relays a single item.
type ItemRelayer interface {
	Relay(ctx context.Context, itemID string) (domain.Outcome, error)
}

// BatchRunner claims the session for a catalog batch and hands back its body.
type BatchRunner interface {
	Start(req relay.BatchRequest) (relay.RunFunc, error)
}

// Canceller flags the active batch of a session.
type Canceller interface {
	Cancel(key string) bool
}

// Records is the read side of the dedup store.
type Records interface {
	Get(ctx context.Context, itemID string) (domain.RelayRecord, error)
	Count(ctx context.Context, since time.Time) (int, error)
}

// Config controls the bot loop.
type Config struct {
	ChannelID   string
	PollTimeout time.Duration
}

// Bot long-polls Telegram and dispatches commands. Batches run on their own
// goroutines; Run waits for them before returning.
type Bot struct {
	cfg      Config
	api      API
	relayer  ItemRelayer
	batches  BatchRunner
	sessions Canceller
	records  Records
	log      logger.Logger
	now      func() time.Time

	wg sync.WaitGroup
}

// New wires a Bot.
func New(cfg Config, api API, relayer ItemRelayer, batches BatchRunner, sessions Canceller, records Records, log logger.Logger) *Bot {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	return &Bot{
		cfg:      cfg,
		api:      api,
		relayer:  relayer,
		batches:  batches,
		sessions: sessions,
		records:  records,
		log:      logger.Ensure(log),
		now:      time.Now,
	}
}

// Run polls for updates until ctx is done, then waits for running batches.
func (b *Bot) Run(ctx context.Context) error {
	defer b.wg.Wait()

	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		updates, err := b.api.GetUpdates(ctx, offset, b.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.log.WarnObj("poll failed", "bot_poll", map[string]any{"error": err.Error()})
			if !sleep(ctx, retryDelay(err)) {
				return nil
			}
			continue
		}
		for _, u := range updates {
			offset = max(offset, u.UpdateID+1)
			if u.Message != nil {
				b.Handle(ctx, *u.Message)
			}
		}
	}
}

// Wait blocks until every batch started by the bot has finished.
func (b *Bot) Wait() {
	b.wg.Wait()
}

// Handle dispatches one incoming message. Batches are started asynchronously;
// everything else completes before Handle returns.
func (b *Bot) Handle(ctx context.Context, msg telegram.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	if !strings.HasPrefix(text, "/") {
		if strings.HasPrefix(text, "http") {
			b.handleURL(ctx, chatID, text)
		}
		return
	}

	cmd, arg := splitCommand(text)
	switch cmd {
	case "/start":
		metrics.ObserveCommand("start")
		if arg == "" {
			b.reply(ctx, chatID, helpText, telegram.ParseModeMarkdown)
			return
		}
		b.handleReshare(ctx, chatID, arg)
	case "/stats":
		metrics.ObserveCommand("stats")
		b.handleStats(ctx, chatID)
	case "/cancel":
		metrics.ObserveCommand("cancel")
		if b.sessions.Cancel(chatID) {
			b.reply(ctx, chatID, "🛑 Cancelling...", "")
		} else {
			b.reply(ctx, chatID, "ℹ️ Nothing to cancel", "")
		}
	case "/channel":
		if arg == "" {
			return
		}
		metrics.ObserveCommand("channel")
		b.handleChannel(ctx, chatID, arg)
	}
}

func (b *Bot) handleReshare(ctx context.Context, chatID, itemID string) {
	rec, err := b.records.Get(ctx, itemID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			b.log.WarnObj("record lookup failed", "bot_reshare", map[string]any{"item_id": itemID, "error": err.Error()})
		}
		b.reply(ctx, chatID, "❌ Not found", "")
		return
	}
	if _, err := b.api.CopyMessage(ctx, chatID, b.cfg.ChannelID, rec.MessageRef); err != nil {
		b.log.WarnObj("copy message failed", "bot_reshare", map[string]any{
			"item_id":     itemID,
			"message_ref": rec.MessageRef,
			"error":       err.Error(),
		})
	}
}

func (b *Bot) handleStats(ctx context.Context, chatID string) {
	stats, err := storage.CountStats(ctx, b.records, b.now())
	if err != nil {
		b.log.WarnObj("stats failed", "bot_stats", map[string]any{"error": err.Error()})
		b.reply(ctx, chatID, "❌ "+err.Error(), "")
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("📊 Total: %d | Today: %d", stats.Total, stats.Today), "")
}

func (b *Bot) handleChannel(ctx context.Context, chatID, arg string) {
	handle, expr, _ := strings.Cut(arg, "|")
	handle = strings.TrimSpace(handle)
	rng, err := catalog.ParseRange(expr)
	if err != nil {
		b.reply(ctx, chatID, "❌ "+err.Error(), "")
		return
	}

	req := relay.BatchRequest{SessionKey: chatID, ChatID: chatID, Handle: handle, Range: rng}
	// The session is claimed before Handle returns so a following /cancel sees it.
	run, err := b.batches.Start(req)
	if err != nil {
		b.batchFailed(ctx, chatID, err)
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if _, err := run(ctx); err != nil {
			b.batchFailed(ctx, chatID, err)
		}
	}()
}

func (b *Bot) batchFailed(ctx context.Context, chatID string, err error) {
	switch {
	case errors.Is(err, domain.ErrDuplicateBatch):
		b.reply(ctx, chatID, "⚠️ Already running", "")
	case errors.Is(err, domain.ErrNoItems), errors.Is(err, domain.ErrNotFound):
		// The batch status message already says so.
	default:
		b.reply(ctx, chatID, "❌ "+err.Error(), "")
	}
}

func (b *Bot) handleURL(ctx context.Context, chatID, text string) {
	itemID, ok := youtube.VideoIDFromURL(text)
	if !ok {
		b.reply(ctx, chatID, "❌ Invalid URL", "")
		return
	}
	metrics.ObserveCommand("url")

	status, err := b.api.SendMessage(ctx, chatID, "⏳ Processing...", "")
	if err != nil {
		b.log.WarnObj("status message failed", "bot_url", map[string]any{"error": err.Error()})
	}

	outcome, _ := b.relayer.Relay(ctx, itemID)
	result := "❌ Failed"
	switch outcome {
	case domain.OutcomeSuccess:
		result = "✅ Sent!"
	case domain.OutcomeSkipped:
		result = "⏭️ Exists/Too large"
	}
	if status.MessageID == 0 {
		return
	}
	if err := b.api.EditMessageText(ctx, chatID, status.MessageID, result, ""); err != nil {
		b.log.DebugObj("status edit failed", "bot_url", map[string]any{"error": err.Error()})
	}
}

func (b *Bot) reply(ctx context.Context, chatID, text, parseMode string) {
	if _, err := b.api.SendMessage(ctx, chatID, text, parseMode); err != nil {
		b.log.WarnObj("reply failed", "bot_reply", map[string]any{"chat_id": chatID, "error": err.Error()})
	}
}

// splitCommand separates "/cmd@bot rest" into "/cmd" and "rest".
func splitCommand(text string) (string, string) {
	cmd, arg, _ := strings.Cut(text, " ")
	if at := strings.IndexByte(cmd, '@'); at > 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}

func retryDelay(err error) time.Duration {
	var apiErr *telegram.APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return time.Duration(apiErr.RetryAfter) * time.Second
	}
	return pollRetryDelay
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
