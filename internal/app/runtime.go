package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-audio-relay/internal/catalog"
	"github.com/samvad-hq/samvad-audio-relay/internal/config"
	"github.com/samvad-hq/samvad-audio-relay/internal/logger"
	"github.com/samvad-hq/samvad-audio-relay/internal/progress"
	"github.com/samvad-hq/samvad-audio-relay/internal/relay"
	"github.com/samvad-hq/samvad-audio-relay/internal/session"
	"github.com/samvad-hq/samvad-audio-relay/internal/storage"
	"github.com/samvad-hq/samvad-audio-relay/pkg/extractor"
	"github.com/samvad-hq/samvad-audio-relay/pkg/httpclient"
	"github.com/samvad-hq/samvad-audio-relay/pkg/publishers"
	"github.com/samvad-hq/samvad-audio-relay/pkg/telegram"
	"github.com/samvad-hq/samvad-audio-relay/pkg/youtube"
)

const userAgent = "samvad-audio-relay/1.0"

// ErrCatalogsDisabled is returned when batches are requested without a YouTube API key.
var ErrCatalogsDisabled = errors.New("catalog lookups need youtube_api_key")

// Runtime holds the components shared by the bot and the operator CLI.
type Runtime struct {
	Config    *config.Config
	Store     storage.Store
	Extractor *extractor.Client
	Telegram  *telegram.Client
	Events    *publishers.Fanout
	Relayer   *relay.Relayer
	Sessions  *session.Registry

	catalogs *catalog.Enumerator
	log      logger.Logger
}

// NewRuntime builds every relay component from cfg. Close releases them.
func NewRuntime(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if err := cfg.RequireBot(); err != nil {
		return nil, err
	}
	log = logger.Ensure(log)
	rt := &Runtime{Config: cfg, Sessions: session.NewRegistry(), log: log}

	store, err := storage.NewStore(ctx, cfg.StorageType, storage.Options{
		BBoltPath:     cfg.BBoltPath,
		PostgresDSN:   cfg.PostgresDSN,
		PostgresTable: cfg.PostgresTable,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	rt.Store = store
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type": cfg.StorageType,
		"path": cfg.BBoltPath,
	})

	rt.Extractor, err = extractor.New(extractor.Config{
		BaseURL:         cfg.ExtractorBaseURL,
		Timeout:         cfg.ExtractorTimeout,
		CleanupTimeout:  cfg.CleanupTimeout,
		MaxPayloadBytes: cfg.MaxPayloadBytes,
	}, httpclient.NewRestyClient(0, httpclient.WithUserAgent(userAgent)), log)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("init extractor: %w", err)
	}

	rt.Telegram, err = telegram.New(telegram.Config{
		Token:         cfg.TelegramToken,
		APIURL:        cfg.TelegramAPIURL,
		RatePerSecond: cfg.TelegramRatePerSecond,
	})
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("init telegram: %w", err)
	}

	rt.Events, err = publishers.LoadFanout(ctx, cfg.PublishersFile, log)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("load publishers: %w", err)
	}

	if cfg.YouTubeAPIKey != "" {
		web := httpclient.NewRestyClient(cfg.ExtractorTimeout, httpclient.WithUserAgent(userAgent), httpclient.WithRetries(2, 500*time.Millisecond))
		yt, err := youtube.New(ctx, youtube.Config{
			APIKey: cfg.YouTubeAPIKey,
			APIURL: cfg.YouTubeAPIURL,
			WebURL: cfg.YouTubeWebURL,
		}, web)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("init youtube: %w", err)
		}
		rt.catalogs = catalog.NewEnumerator(yt, log)
	} else {
		log.WarnObj("youtube_api_key not set; catalog batches disabled", "catalog_config", nil)
	}

	rt.Relayer = relay.NewRelayer(rt.Store, rt.Extractor, rt.Telegram, cfg.TelegramChannelID,
		relay.WithEvents(rt.Events),
		relay.WithLogger(log),
	)
	return rt, nil
}

// NewBatcher returns a Batcher reporting progress through msgr.
func (r *Runtime) NewBatcher(msgr progress.Messenger) (*relay.Batcher, error) {
	if r.catalogs == nil {
		return nil, ErrCatalogsDisabled
	}
	return relay.NewBatcher(r.Relayer, r.catalogs, r.Sessions, msgr, r.Config.ProgressInterval, r.log), nil
}

// Close waits for pending cleanups and releases publishers and storage.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	if r.Extractor != nil {
		r.Extractor.Wait()
	}
	var errs []error
	if r.Events != nil {
		errs = append(errs, r.Events.Close())
	}
	if r.Store != nil {
		errs = append(errs, r.Store.Close())
	}
	return errors.Join(errs...)
}
