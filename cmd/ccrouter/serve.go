package main

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/RaghavSood/ccrouter/bot"
	"github.com/RaghavSood/ccrouter/metrics"
	"github.com/RaghavSood/ccrouter/ranking"
	"github.com/RaghavSood/ccrouter/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the status tracker and the Telegram bot",
	Long: `Serve recent trades, provider state and Prometheus metrics over HTTP,
poll pending trades in the background and, when telegram.token is set, answer
operator commands in telegram.chat_id.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, ranking.DefaultPolicy())
	if err != nil {
		return err
	}
	defer a.Close()

	metrics.RegisterMetrics([]string{
		metrics.ServiceAggregator,
		metrics.ServiceExecutor,
		metrics.ServiceTracker,
		metrics.ServiceHTTP,
	}, a.logger)

	trk, err := a.tracker()
	if err != nil {
		return err
	}

	srv := server.New(a.cfg.Port, a.store, a.engine, a.logger,
		server.WithAdminPassword(a.cfg.AdminPassword),
		server.WithWallet(a.owner, a.callers),
		server.WithExplorer(a.cfg.ExplorerTxURL),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(ctx) })
	g.Go(func() error {
		trk.Run(ctx)
		return nil
	})
	if a.cfg.Telegram.Token != "" {
		api, err := a.telegram()
		if err != nil {
			return err
		}
		b := bot.New(api, a.cfg.Telegram.ChatID, a.owner, a.store, a.engine, a.logger)
		g.Go(func() error {
			b.Run(ctx)
			return nil
		})
	}

	a.logger.WithField("port", a.cfg.Port).Info("ccrouter serving")
	return g.Wait()
}

// telegram connects the bot API once and reuses it for the tracker and the
// command handler.
func (a *app) telegram() (*tgbotapi.BotAPI, error) {
	if a.bot != nil {
		return a.bot, nil
	}
	api, err := bot.Connect(a.cfg.Telegram.Token, a.logger)
	if err != nil {
		return nil, err
	}
	a.bot = api
	return api, nil
}
