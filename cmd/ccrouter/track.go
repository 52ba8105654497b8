package main

import (
	"github.com/spf13/cobra"

	"github.com/RaghavSood/ccrouter/metrics"
	"github.com/RaghavSood/ccrouter/ranking"
	"github.com/RaghavSood/ccrouter/tracker"
)

var trackOnce bool

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Poll providers for the status of pending trades",
	Long: `Check every pending trade against its provider's status endpoint and
record the result. Runs until interrupted unless --once is given.`,
	Args: cobra.NoArgs,
	RunE: runTrack,
}

func init() {
	rootCmd.AddCommand(trackCmd)
	trackCmd.Flags().BoolVar(&trackOnce, "once", false, "Poll once and exit")
}

func runTrack(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, ranking.DefaultPolicy())
	if err != nil {
		return err
	}
	defer a.Close()

	trk, err := a.tracker()
	if err != nil {
		return err
	}

	if trackOnce {
		changed := trk.Poll(ctx)
		a.logger.WithField("changed", changed).Info("Poll complete")
		return printTrades(ctx, a, a.owner.Hex())
	}

	trk.Run(ctx)
	return nil
}

// tracker builds the status tracker, with Telegram notifications when a bot
// token is configured.
func (a *app) tracker() (*tracker.Tracker, error) {
	opts := []tracker.Option{
		tracker.WithInterval(a.cfg.TrackerInterval),
		tracker.WithExplorer(a.cfg.ExplorerTxURL),
		tracker.WithMetrics(metrics.NewTrackerMetrics()),
	}
	if a.cfg.Telegram.Token != "" {
		api, err := a.telegram()
		if err != nil {
			return nil, err
		}
		opts = append(opts, tracker.WithTelegram(api, a.cfg.Telegram.ChatID))
	}
	return tracker.New(a.store, a.providers, a.logger, opts...), nil
}
