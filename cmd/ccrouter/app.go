package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/RaghavSood/ccrouter/aggregator"
	"github.com/RaghavSood/ccrouter/apilog"
	"github.com/RaghavSood/ccrouter/config"
	"github.com/RaghavSood/ccrouter/cowswap"
	"github.com/RaghavSood/ccrouter/db"
	"github.com/RaghavSood/ccrouter/executor"
	"github.com/RaghavSood/ccrouter/houdini"
	"github.com/RaghavSood/ccrouter/metrics"
	"github.com/RaghavSood/ccrouter/nearintents"
	"github.com/RaghavSood/ccrouter/ranking"
	"github.com/RaghavSood/ccrouter/relay"
	"github.com/RaghavSood/ccrouter/simpleswap"
	"github.com/RaghavSood/ccrouter/swaps"
	"github.com/RaghavSood/ccrouter/thorchain"
	"github.com/RaghavSood/ccrouter/wallet"
)

// app holds everything a command needs, built from the loaded config.
type app struct {
	cfg       *config.Config
	logger    *logrus.Logger
	store     *db.Store
	providers []swaps.Provider
	session   *aggregator.Session
	engine    *aggregator.Engine
	clients   map[swaps.Blockchain]*ethclient.Client
	callers   map[swaps.Blockchain]ethereum.ContractCaller
	owner     common.Address
	bot       *tgbotapi.BotAPI
}

func newApp(ctx context.Context, policy ranking.Policy) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	store, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	owner, err := wallet.DeriveAddress(cfg.Mnemonic, cfg.AccountIndex)
	if err != nil {
		store.Close()
		return nil, err
	}

	clients, err := wallet.Dial(ctx, cfg.RPCEndpoints)
	if err != nil {
		store.Close()
		return nil, err
	}
	callers := make(map[swaps.Blockchain]ethereum.ContractCaller, len(clients))
	for chain, c := range clients {
		callers[chain] = c
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		clients: clients,
		callers: callers,
		owner:   owner,
	}
	a.providers = a.buildProviders()
	a.session = aggregator.NewSession(policy, cfg.Dangerous()...)
	a.engine = aggregator.NewEngine(a.providers, a.session, logger,
		aggregator.WithApprovalChecker(executor.Allowances(callers)),
		aggregator.WithMetrics(metrics.NewAggregatorMetrics()),
	)
	return a, nil
}

func (a *app) httpClient(p swaps.ProviderType) *http.Client {
	return apilog.NewHTTPClient(string(p), a.store, a.logger)
}

// buildProviders registers every adapter whose credentials are present.
func (a *app) buildProviders() []swaps.Provider {
	pc := a.cfg.Providers
	providers := []swaps.Provider{
		thorchain.NewProvider(thorchain.NewClient(pc.Thorchain.BaseURL, a.httpClient(swaps.ProviderThorchain)), a.logger),
		nearintents.NewProvider(nearintents.NewClient(pc.NearIntents.APIKey, pc.NearIntents.BaseURL, a.httpClient(swaps.ProviderNearIntents)), a.logger),
	}
	if pc.SimpleSwap.APIKey != "" {
		providers = append(providers, simpleswap.NewProvider(
			simpleswap.NewClient(pc.SimpleSwap.APIKey, pc.SimpleSwap.BaseURL, a.httpClient(swaps.ProviderSimpleSwap)), a.logger))
	}
	if pc.Houdini.APIKey != "" {
		providers = append(providers, houdini.NewProvider(
			houdini.NewClient(pc.Houdini.APIKey, pc.Houdini.APISecret, pc.Houdini.BaseURL, a.httpClient(swaps.ProviderHoudini)),
			pc.Houdini.Anonymous, a.logger))
	}
	providers = append(providers, cowswap.NewProvider(cowswap.NewClient(pc.CowSwap.BaseURL, a.httpClient(swaps.ProviderCowSwap)), a.logger))

	for _, p := range providers {
		a.logger.WithField("provider", p.Type()).Debug("Provider enabled")
	}
	return providers
}

// coordinator builds a signer-backed execution coordinator. confirm may be nil.
func (a *app) coordinator(confirm wallet.ConfirmFunc) (*executor.Coordinator, error) {
	key, err := wallet.DeriveKey(a.cfg.Mnemonic, a.cfg.AccountIndex)
	if err != nil {
		return nil, err
	}
	backends := make(map[swaps.Blockchain]wallet.Backend, len(a.clients))
	for chain, c := range a.clients {
		backends[chain] = c
	}
	var signerOpts []wallet.SignerOption
	if confirm != nil {
		signerOpts = append(signerOpts, wallet.WithConfirm(confirm))
	}
	signer := wallet.NewEVMSigner(key, backends, a.logger, signerOpts...)

	opts := []executor.Option{
		executor.WithRPCs(a.callers),
		executor.WithMetrics(metrics.NewExecutorMetrics()),
	}
	if a.cfg.Relay.Endpoint != "" {
		opts = append(opts, executor.WithRelay(relay.NewClient(a.cfg.Relay.Endpoint, a.cfg.Relay.APIKey, nil)))
	}
	return executor.NewCoordinator(a.engine, signer, a.store, a.logger, opts...), nil
}

func (a *app) Close() {
	a.engine.Stop()
	for _, c := range a.clients {
		c.Close()
	}
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("Closing database")
	}
}

func newLogger(level string) (*logrus.Logger, error) {
	logger := logrus.New()
	if logLevel != "" {
		level = logLevel
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger, nil
}
