package bot

import (
	"context"

	"github.com/samvad-hq/samvad-audio-relay/internal/progress"
)

// Messenger adapts the Telegram client to progress.Messenger, sending every
// status text with one parse mode.
type Messenger struct {
	api       API
	parseMode string
}

var _ progress.Messenger = (*Messenger)(nil)

// NewMessenger returns a Messenger that formats messages with parseMode.
func NewMessenger(api API, parseMode string) *Messenger {
	return &Messenger{api: api, parseMode: parseMode}
}

// SendMessage posts text and returns the new message id.
func (m *Messenger) SendMessage(ctx context.Context, chatID, text string) (int64, error) {
	msg, err := m.api.SendMessage(ctx, chatID, text, m.parseMode)
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// EditMessage replaces the text of a message posted earlier.
func (m *Messenger) EditMessage(ctx context.Context, chatID string, messageID int64, text string) error {
	return m.api.EditMessageText(ctx, chatID, messageID, text, m.parseMode)
}
