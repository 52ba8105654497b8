package tracker

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/RaghavSood/ccrouter/db"
	"github.com/RaghavSood/ccrouter/metrics"
	"github.com/RaghavSood/ccrouter/swaps"
)

const owner = "0x00000000000000000000000000000000000000a1"

type statusProvider struct {
	typ      swaps.ProviderType
	mu       sync.Mutex
	statuses map[string]swaps.TradeStatus
	err      error
	seen     []string
}

func (p *statusProvider) Type() swaps.ProviderType { return p.typ }
func (p *statusProvider) SupportsPair(from, to swaps.Blockchain) bool { return true }
func (p *statusProvider) Calculate(ctx context.Context, req swaps.Request) (swaps.Trade, error) {
	return swaps.Trade{}, errors.New("not used")
}

func (p *statusProvider) CheckStatus(ctx context.Context, txHash, externalID string) (swaps.TradeStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, txHash+"|"+externalID)
	if p.err != nil {
		return swaps.TradeStatusUnknown, p.err
	}
	return p.statuses[txHash], nil
}

// quoteOnly has no status endpoint.
type quoteOnly struct{}

func (quoteOnly) Type() swaps.ProviderType { return swaps.ProviderCowSwap }
func (quoteOnly) SupportsPair(from, to swaps.Blockchain) bool { return true }
func (quoteOnly) Calculate(ctx context.Context, req swaps.Request) (swaps.Trade, error) {
	return swaps.Trade{}, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func openStore(t *testing.T) *db.Store {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seed(t *testing.T, store *db.Store, hash string, provider swaps.ProviderType, external string) {
	t.Helper()
	_, err := store.AppendRecentTrade(context.Background(), db.AppendRecentTradeParams{
		Owner:          owner,
		SourceTxHash:   hash,
		FromBlockchain: "base",
		ToBlockchain:   "bitcoin",
		FromToken:      "BASE.USDC",
		ToToken:        "BITCOIN.BTC",
		FromAmount:     "100",
		ToAmount:       "0.0015",
		Provider:       string(provider),
		ExternalID:     sql.NullString{String: external, Valid: external != ""},
	})
	require.NoError(t, err)
}

func newTracker(store Store, providers []swaps.Provider, opts ...Option) *Tracker {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(store, providers, logger, opts...)
}

func statusOf(t *testing.T, store *db.Store, hash string) string {
	t.Helper()
	row, err := store.GetRecentTrade(context.Background(), owner, hash)
	require.NoError(t, err)
	return row.Status
}

func TestPollUpdatesFinishedTrades(t *testing.T) {
	store := openStore(t)
	seed(t, store, "0x01", swaps.ProviderNearIntents, "deposit-1")
	seed(t, store, "0x02", swaps.ProviderNearIntents, "deposit-2")
	seed(t, store, "0x03", swaps.ProviderNearIntents, "deposit-3")

	provider := &statusProvider{typ: swaps.ProviderNearIntents, statuses: map[string]swaps.TradeStatus{
		"0x01": swaps.TradeStatusSuccess,
		"0x02": swaps.TradeStatusPending,
		"0x03": swaps.TradeStatusFallback,
	}}
	bot := &fakeSender{}
	tr := newTracker(store, []swaps.Provider{provider},
		WithTelegram(bot, 42),
		WithExplorer(func(chain, hash string) string { return "https://basescan.org/tx/" + hash }),
		WithMetrics(metrics.NewTrackerMetrics()),
	)

	require.Equal(t, 2, tr.Poll(context.Background()))

	require.Equal(t, "success", statusOf(t, store, "0x01"))
	require.Equal(t, "pending", statusOf(t, store, "0x02"))
	require.Equal(t, "fallback", statusOf(t, store, "0x03"))
	require.Contains(t, provider.seen, "0x01|deposit-1")

	require.Len(t, bot.sent, 2)
	require.Equal(t, int64(42), bot.sent[0].ChatID)
	require.True(t, strings.HasPrefix(bot.sent[0].Text, "*Swap Complete*"))
	require.Contains(t, bot.sent[0].Text, "https://basescan.org/tx/0x01")
	require.True(t, strings.HasPrefix(bot.sent[1].Text, "*Swap Refunded*"))

	// Finished trades drop out of the pending list.
	require.Equal(t, 0, tr.Poll(context.Background()))
	require.Len(t, provider.seen, 4)
}

func TestPollKeepsStatusOnError(t *testing.T) {
	store := openStore(t)
	seed(t, store, "0x01", swaps.ProviderSimpleSwap, "ex-1")

	provider := &statusProvider{typ: swaps.ProviderSimpleSwap, err: errors.New("boom")}
	bot := &fakeSender{}
	tr := newTracker(store, []swaps.Provider{provider}, WithTelegram(bot, 42))

	require.Equal(t, 0, tr.Poll(context.Background()))
	require.Equal(t, "pending", statusOf(t, store, "0x01"))
	require.Empty(t, bot.sent)
}

func TestPollSkipsProvidersWithoutStatus(t *testing.T) {
	store := openStore(t)
	seed(t, store, "0x01", swaps.ProviderCowSwap, "0xuid")

	tr := newTracker(store, []swaps.Provider{quoteOnly{}})
	require.Empty(t, tr.checkers)
	require.Equal(t, 0, tr.Poll(context.Background()))
	require.Equal(t, "pending", statusOf(t, store, "0x01"))
}

func TestFailureWithoutTelegram(t *testing.T) {
	store := openStore(t)
	seed(t, store, "0x01", swaps.ProviderHoudini, "h-1")

	provider := &statusProvider{typ: swaps.ProviderHoudini, statuses: map[string]swaps.TradeStatus{"0x01": swaps.TradeStatusFail}}
	tr := newTracker(store, []swaps.Provider{provider})

	require.Equal(t, 1, tr.Poll(context.Background()))
	require.Equal(t, "fail", statusOf(t, store, "0x01"))
}

func TestNotificationText(t *testing.T) {
	trade := db.RecentTrade{FromAmount: "1", FromToken: "BASE.ETH", ToAmount: "0.05", ToToken: "BITCOIN.BTC", Provider: "thorchain", SourceTxHash: "0xabc"}
	text := notificationText(trade, swaps.TradeStatusFail)
	require.Contains(t, text, "*Swap Failed*")
	require.Contains(t, text, "via THORChain")
	require.Contains(t, text, "1 BASE.ETH → 0.05 BITCOIN.BTC")
}
