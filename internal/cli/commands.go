package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/samvad-hq/samvad-audio-relay/internal/app"
	"github.com/samvad-hq/samvad-audio-relay/internal/catalog"
	"github.com/samvad-hq/samvad-audio-relay/internal/domain"
	"github.com/samvad-hq/samvad-audio-relay/internal/relay"
	"github.com/samvad-hq/samvad-audio-relay/internal/storage"
	"github.com/samvad-hq/samvad-audio-relay/pkg/youtube"
)

const cliSession = "relayctl"

func newItemCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "item <video-id|url>",
		Short: "Relay a single item into the channel",
		Example: `  relayctl item dQw4w9WgXcQ
  relayctl item https://youtu.be/dQw4w9WgXcQ`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseItem(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(rt *app.Runtime) error {
				outcome, err := rt.Relayer.Relay(cmd.Context(), itemID)
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s (%s)\n", outcomeIcon(outcome), itemID, outcome, relay.Reason(err))
				if outcome == domain.OutcomeFailed {
					return fmt.Errorf("relay %s: %w", itemID, err)
				}
				return nil
			})
		},
	}
}

func newChannelCmd() *cobra.Command {
	var rangeExpr string

	cmd := &cobra.Command{
		Use:   "channel <handle>",
		Short: "Relay every upload of a channel, optionally a range of it",
		Example: `  relayctl channel @lofigirl
  relayctl channel @lofigirl --range 10-50`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := catalog.ParseRange(rangeExpr)
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(rt *app.Runtime) error {
				batcher, err := rt.NewBatcher(newConsole(cmd.OutOrStdout()))
				if err != nil {
					return err
				}
				report, err := batcher.Run(cmd.Context(), relay.BatchRequest{
					SessionKey: cliSession,
					ChatID:     cliSession,
					Handle:     args[0],
					Range:      rng,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "batch %s %s: %d/%d processed, %d sent, %d failed, %d skipped\n",
					report.BatchID, report.Status, report.Processed, report.Total, report.Success, report.Failed, report.Skipped)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&rangeExpr, "range", "r", "", "1-based inclusive range, N or N-M")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show relayed item counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), func(rt *app.Runtime) error {
				stats, err := storage.CountStats(cmd.Context(), rt.Store, time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "📊 Total: %d | Today: %d\n", stats.Total, stats.Today)
				return nil
			})
		},
	}
}

// parseItem accepts a bare video id or any supported video link.
func parseItem(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if youtube.IsVideoID(arg) {
		return arg, nil
	}
	if id, ok := youtube.VideoIDFromURL(arg); ok {
		return id, nil
	}
	return "", fmt.Errorf("%q is not a video id or link", arg)
}

func outcomeIcon(o domain.Outcome) string {
	switch o {
	case domain.OutcomeSuccess:
		return "✅"
	case domain.OutcomeSkipped:
		return "⏭️"
	default:
		return "❌"
	}
}
