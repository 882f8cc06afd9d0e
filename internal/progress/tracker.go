// Package progress renders live batch progress into a single edited chat message.
package progress

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/samvad-audio-relay/internal/domain"
	"github.com/samvad-hq/samvad-audio-relay/internal/logger"
)

const barSegments = 10

// Messenger posts and edits status messages.
type Messenger interface {
	SendMessage(ctx context.Context, chatID, text string) (int64, error)
	EditMessage(ctx context.Context, chatID string, messageID int64, text string) error
}

// Snapshot is a point-in-time copy of the tracker counters.
type Snapshot struct {
	Total   int
	Current int
	Success int
	Failed  int
	Skipped int
}

// Tracker accumulates per-item outcomes for one batch.
type Tracker struct {
	mu       sync.Mutex
	msgr     Messenger
	chatID   string
	throttle *Throttle
	log      logger.Logger

	state     Snapshot
	messageID int64
}

// NewTracker builds a tracker that renders at most once per interval.
func NewTracker(msgr Messenger, chatID string, interval time.Duration, now func() time.Time, log logger.Logger) *Tracker {
	return &Tracker{
		msgr:     msgr,
		chatID:   chatID,
		throttle: NewThrottle(interval, now),
		log:      logger.Ensure(log),
	}
}

// Start posts the initial status message. Failures are logged and later
// renders become no-ops.
func (t *Tracker) Start(ctx context.Context, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = Snapshot{Total: total}
	id, err := t.msgr.SendMessage(ctx, t.chatID, RenderProcessing(t.state))
	if err != nil {
		t.log.WarnObj("progress start failed", "progress", map[string]any{
			"chat_id": t.chatID,
			"error":   err.Error(),
		})
		return
	}
	t.messageID = id
}

// Record counts one outcome and re-renders when the throttle allows or the
// batch just reached its total.
func (t *Tracker) Record(ctx context.Context, outcome domain.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.Current++
	switch outcome {
	case domain.OutcomeSuccess:
		t.state.Success++
	case domain.OutcomeFailed:
		t.state.Failed++
	default:
		t.state.Skipped++
	}

	if !t.throttle.Allow(t.state.Current == t.state.Total) {
		return
	}
	t.edit(ctx, RenderProcessing(t.state))
}

// Finalize renders the completion summary regardless of the throttle.
func (t *Tracker) Finalize(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.edit(ctx, RenderComplete(t.state))
}

// Snapshot returns the current counters.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) edit(ctx context.Context, text string) {
	if t.messageID == 0 {
		return
	}
	if err := t.msgr.EditMessage(ctx, t.chatID, t.messageID, text); err != nil {
		t.log.DebugObj("progress render failed", "progress", map[string]any{
			"chat_id":    t.chatID,
			"message_id": t.messageID,
			"error":      err.Error(),
		})
	}
}

// Percent is round(current/total*100), 0 for an empty batch.
func Percent(s Snapshot) int {
	if s.Total <= 0 {
		return 0
	}
	return int(math.Round(float64(s.Current) / float64(s.Total) * 100))
}

// Bar draws a ten segment bar for pct.
func Bar(pct int) string {
	filled := int(math.Round(float64(pct) / 10))
	filled = min(max(filled, 0), barSegments)
	return strings.Repeat("█", filled) + strings.Repeat("░", barSegments-filled)
}

// RenderProcessing formats the in-flight status message.
func RenderProcessing(s Snapshot) string {
	pct := Percent(s)
	return fmt.Sprintf("📊 *Processing*\n\n%s %d%%\n\n✅ %d | ❌ %d | ⏭️ %d\n🔄 %d/%d",
		Bar(pct), pct, s.Success, s.Failed, s.Skipped, s.Current, s.Total)
}

// RenderComplete formats the final summary.
func RenderComplete(s Snapshot) string {
	return fmt.Sprintf("✅ *Complete!*\n\n✅ %d | ❌ %d | ⏭️ %d", s.Success, s.Failed, s.Skipped)
}
