// Package cli implements relayctl, the operator command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samvad-hq/samvad-audio-relay/internal/app"
	"github.com/samvad-hq/samvad-audio-relay/internal/config"
	"github.com/samvad-hq/samvad-audio-relay/internal/logger"
)

// NewRootCmd builds the relayctl command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relayctl",
		Short: "Operate the audio relay without the chat front end",
		Long: `relayctl runs the same relay pipeline as the bot from a terminal.

It reads the bot configuration (environment and configs/.env), posts into the
configured channel and shares the dedup store with the running bot.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newItemCmd(), newChannelCmd(), newStatsCmd())
	return cmd
}

// withRuntime loads configuration, builds the runtime and hands it to fn.
func withRuntime(ctx context.Context, fn func(*app.Runtime) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	rt, err := app.NewRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}
