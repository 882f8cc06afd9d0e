package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/samvad-audio-relay/internal/app"
	"github.com/samvad-hq/samvad-audio-relay/internal/config"
	"github.com/samvad-hq/samvad-audio-relay/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "relaybot start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	log.InfoObj("relaybot starting", "config", map[string]any{
		"app_name":     cfg.AppName,
		"app_env":      cfg.Env,
		"storage_type": cfg.StorageType,
		"extractor":    cfg.ExtractorBaseURL,
		"admin_addr":   cfg.AdminAddr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relayBot, err := app.NewRelayBot(ctx, cfg, log)
	if err != nil {
		log.ErrorObj("failed to initialize relay bot", "error", err.Error())
		return err
	}

	if err := relayBot.Run(ctx); err != nil {
		return fmt.Errorf("relaybot run: %w", err)
	}
	return nil
}
