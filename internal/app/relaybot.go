package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/samvad-hq/samvad-audio-relay/internal/bot"
	"github.com/samvad-hq/samvad-audio-relay/internal/config"
	"github.com/samvad-hq/samvad-audio-relay/internal/logger"
	"github.com/samvad-hq/samvad-audio-relay/internal/relay"
	"github.com/samvad-hq/samvad-audio-relay/internal/server"
	"github.com/samvad-hq/samvad-audio-relay/pkg/telegram"
)

const shutdownTimeout = 10 * time.Second

// RelayBot is the long-running bot runtime: the Telegram poll loop plus the
// admin HTTP server.
type RelayBot struct {
	rt    *Runtime
	bot   *bot.Bot
	admin *http.Server
	log   logger.Logger
}

// NewRelayBot builds the bot runtime from cfg.
func NewRelayBot(ctx context.Context, cfg *config.Config, log logger.Logger) (*RelayBot, error) {
	log = logger.Ensure(log)
	rt, err := NewRuntime(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var batches bot.BatchRunner = disabledBatches{}
	batcher, err := rt.NewBatcher(bot.NewMessenger(rt.Telegram, telegram.ParseModeMarkdown))
	if err == nil {
		batches = batcher
	}

	rb := &RelayBot{
		rt: rt,
		bot: bot.New(bot.Config{
			ChannelID:   cfg.TelegramChannelID,
			PollTimeout: cfg.TelegramPollTimeout,
		}, rt.Telegram, rt.Relayer, batches, rt.Sessions, rt.Store, log),
		log: log,
	}
	if cfg.AdminAddr != "" {
		rb.admin = &http.Server{
			Addr:              cfg.AdminAddr,
			Handler:           server.New(rt.Store, log, nil).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return rb, nil
}

// Run serves until ctx is cancelled, then drains batches and closes resources.
func (b *RelayBot) Run(ctx context.Context) error {
	if b == nil || b.bot == nil {
		return fmt.Errorf("relay bot is not initialized")
	}
	defer b.close()

	if b.admin != nil {
		go func() {
			b.log.InfoObj("admin server listening", "admin_addr", b.admin.Addr)
			if err := b.admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				b.log.ErrorObj("admin server failed", "error", err.Error())
			}
		}()
	}

	b.log.InfoObj("relay bot starting", "relay_bot", map[string]any{
		"channel":    b.rt.Config.TelegramChannelID,
		"publishers": b.rt.Events.Size(),
		"storage":    b.rt.Config.StorageType,
	})
	err := b.bot.Run(ctx)
	b.log.InfoObj("relay bot stopped", "reason", fmt.Sprint(ctx.Err()))
	return err
}

func (b *RelayBot) close() {
	if b.admin != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := b.admin.Shutdown(ctx); err != nil {
			b.log.ErrorObj("admin shutdown failed", "error", err.Error())
		}
	}
	if err := b.rt.Close(); err != nil {
		b.log.ErrorObj("runtime close failed", "error", err.Error())
	}
}

// disabledBatches answers every batch with ErrCatalogsDisabled.
type disabledBatches struct{}

func (disabledBatches) Start(relay.BatchRequest) (relay.RunFunc, error) {
	return nil, ErrCatalogsDisabled
}
