package bot

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/RaghavSood/ccrouter/aggregator"
	"github.com/RaghavSood/ccrouter/db"
	"github.com/RaghavSood/ccrouter/ranking"
	"github.com/RaghavSood/ccrouter/swaps"
)

const chatID = 42

var owner = common.HexToAddress("0x00000000000000000000000000000000000000a1")

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	updates chan tgbotapi.Update
	stopped bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return f.updates }

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeAPI) last(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1].Text
}

type stubProvider struct{ typ swaps.ProviderType }

func (p stubProvider) Type() swaps.ProviderType { return p.typ }
func (p stubProvider) SupportsPair(from, to swaps.Blockchain) bool { return true }
func (p stubProvider) Calculate(ctx context.Context, req swaps.Request) (swaps.Trade, error) {
	return swaps.Trade{}, nil
}

func command(chat int64, text string) *tgbotapi.Message {
	name := strings.SplitN(text, " ", 2)[0]
	return &tgbotapi.Message{
		MessageID: 7,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: chat},
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}
}

func newTestBot(t *testing.T) (*Bot, *fakeAPI, *db.Store, *aggregator.Engine) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := db.Open(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine := aggregator.NewEngine(
		[]swaps.Provider{stubProvider{swaps.ProviderThorchain}, stubProvider{swaps.ProviderSimpleSwap}},
		aggregator.NewSession(ranking.DefaultPolicy()),
		logger,
	)
	api := &fakeAPI{updates: make(chan tgbotapi.Update, 4)}
	return New(api, chatID, owner, store, engine, logger), api, store, engine
}

func TestUnauthorizedChat(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	b.handleMessage(context.Background(), command(99, "/trades"))
	require.Equal(t, "You are not authorized to use this bot.", api.last(t))
	require.Equal(t, int64(99), api.sent[0].ChatID)
}

func TestNonCommandsAreIgnored(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	b.handleMessage(context.Background(), &tgbotapi.Message{Text: "hello", Chat: &tgbotapi.Chat{ID: chatID}})
	require.Empty(t, api.sent)
}

func TestAddressAndTrades(t *testing.T) {
	b, api, store, _ := newTestBot(t)
	ctx := context.Background()

	b.handleMessage(ctx, command(chatID, "/address"))
	require.Contains(t, api.last(t), owner.Hex())

	b.handleMessage(ctx, command(chatID, "/trades"))
	require.Equal(t, "No trades yet.", api.last(t))

	_, err := store.AppendRecentTrade(ctx, db.AppendRecentTradeParams{
		Owner:          owner.Hex(),
		SourceTxHash:   "0x01",
		FromBlockchain: "base",
		ToBlockchain:   "bitcoin",
		FromToken:      "BASE.USDC",
		ToToken:        "BITCOIN.BTC",
		FromAmount:     "100",
		ToAmount:       "0.0015",
		Provider:       string(swaps.ProviderThorchain),
	})
	require.NoError(t, err)

	b.handleMessage(ctx, command(chatID, "/trades"))
	require.Contains(t, api.last(t), "100 BASE.USDC → 0.0015 BITCOIN.BTC via THORChain: pending")
}

func TestDangerousCommands(t *testing.T) {
	b, api, _, engine := newTestBot(t)
	ctx := context.Background()

	b.handleMessage(ctx, command(chatID, "/danger simpleswap"))
	require.Equal(t, "SimpleSwap is now ranked last.", api.last(t))
	require.True(t, engine.Session().Dangerous.Contains(swaps.ProviderSimpleSwap))

	b.handleMessage(ctx, command(chatID, "/providers"))
	require.Contains(t, api.last(t), "SimpleSwap `simpleswap` (dangerous)")
	require.Contains(t, api.last(t), "THORChain `thorchain`\n")

	b.handleMessage(ctx, command(chatID, "/safe simpleswap"))
	require.False(t, engine.Session().Dangerous.Contains(swaps.ProviderSimpleSwap))

	b.handleMessage(ctx, command(chatID, "/danger uniswap"))
	require.Contains(t, api.last(t), "unknown provider")
}

func TestRunStopsOnCancel(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	api.updates <- tgbotapi.Update{Message: command(chatID, "/start")}
	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return len(api.sent) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.True(t, api.stopped)
}
