package tracker

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/RaghavSood/ccrouter/db"
	"github.com/RaghavSood/ccrouter/metrics"
	"github.com/RaghavSood/ccrouter/swaps"
)

// Store is the part of the ledger the tracker reads and updates.
type Store interface {
	ListPendingRecentTrades(ctx context.Context) ([]db.RecentTrade, error)
	UpdateRecentTradeStatus(ctx context.Context, arg db.UpdateRecentTradeStatusParams) error
}

// Sender delivers Telegram messages. *tgbotapi.BotAPI implements it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Tracker polls provider status endpoints for recorded trades that have not
// reached a final status.
type Tracker struct {
	store    Store
	checkers map[swaps.ProviderType]swaps.StatusChecker
	interval time.Duration
	bot      Sender
	chatID   int64
	explorer func(chain, txHash string) string
	metrics  *metrics.TrackerMetrics
	logger   *logrus.Entry
}

type Option func(*Tracker)

// WithTelegram sends a message to chatID whenever a trade finishes.
func WithTelegram(bot Sender, chatID int64) Option {
	return func(t *Tracker) {
		t.bot = bot
		t.chatID = chatID
	}
}

func WithExplorer(fn func(chain, txHash string) string) Option {
	return func(t *Tracker) { t.explorer = fn }
}

func WithMetrics(m *metrics.TrackerMetrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

func WithInterval(d time.Duration) Option {
	return func(t *Tracker) { t.interval = d }
}

// New builds a tracker over every provider that implements
// swaps.StatusChecker.
func New(store Store, providers []swaps.Provider, logger *logrus.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:    store,
		checkers: map[swaps.ProviderType]swaps.StatusChecker{},
		interval: 15 * time.Second,
		logger:   logger.WithField("pkg", "tracker.Tracker"),
	}
	for _, p := range providers {
		if sc, ok := p.(swaps.StatusChecker); ok {
			t.checkers[p.Type()] = sc
		}
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	// Run once immediately on start
	t.Poll(ctx)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Tracker stopped")
			return
		case <-ticker.C:
			t.Poll(ctx)
		}
	}
}

// Poll checks every pending trade once and returns how many changed status.
func (t *Tracker) Poll(ctx context.Context) int {
	pending, err := t.store.ListPendingRecentTrades(ctx)
	if err != nil {
		t.logger.WithError(err).Error("Listing pending trades")
		return 0
	}
	if len(pending) == 0 {
		return 0
	}

	t.logger.WithField("count", len(pending)).Debug("Checking pending trades")

	changed := 0
	for _, trade := range pending {
		select {
		case <-ctx.Done():
			return changed
		default:
		}
		if t.check(ctx, trade) {
			changed++
		}
	}
	return changed
}

func (t *Tracker) check(ctx context.Context, trade db.RecentTrade) bool {
	log := t.logger.WithFields(logrus.Fields{
		"id":       trade.ID,
		"provider": trade.Provider,
		"tx":       trade.SourceTxHash,
	})

	checker, ok := t.checkers[swaps.ProviderType(trade.Provider)]
	if !ok {
		log.Debug("No status checker for provider")
		return false
	}

	status, err := checker.CheckStatus(ctx, trade.SourceTxHash, trade.ExternalID.String)
	if t.metrics != nil {
		t.metrics.RecordPoll(trade.Provider, err == nil)
	}
	if err != nil {
		log.WithError(err).Warn("Status check failed")
		return false
	}

	if string(status) == trade.Status || status == swaps.TradeStatusUnknown {
		return false
	}

	if err := t.store.UpdateRecentTradeStatus(ctx, db.UpdateRecentTradeStatusParams{
		Status: string(status),
		ID:     trade.ID,
	}); err != nil {
		log.WithError(err).Error("Updating trade status")
		return false
	}
	log.WithFields(logrus.Fields{"from": trade.Status, "to": status}).Info("Trade status changed")
	if t.metrics != nil {
		t.metrics.RecordTransition(trade.Provider, string(status))
	}

	if status.Final() {
		t.notify(trade, status)
	}
	return true
}

func (t *Tracker) notify(trade db.RecentTrade, status swaps.TradeStatus) {
	if t.bot == nil || t.chatID == 0 {
		return
	}

	text := notificationText(trade, status)
	if t.explorer != nil {
		if url := t.explorer(trade.FromBlockchain, trade.SourceTxHash); url != "" {
			text += fmt.Sprintf("\n[View on Explorer](%s)", url)
		}
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "Markdown"
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.WithError(err).WithField("chat_id", t.chatID).Warn("Sending notification")
	}
}

func notificationText(trade db.RecentTrade, status swaps.TradeStatus) string {
	provider := swaps.ProviderType(trade.Provider).DisplayName()
	pair := fmt.Sprintf("%s %s → %s %s", trade.FromAmount, trade.FromToken, trade.ToAmount, trade.ToToken)

	switch status {
	case swaps.TradeStatusSuccess:
		return fmt.Sprintf("*Swap Complete*\n%s via %s\nTx: `%s`", pair, provider, trade.SourceTxHash)
	case swaps.TradeStatusFallback:
		return fmt.Sprintf("*Swap Refunded*\n%s via %s was refunded to the sender.\nTx: `%s`", pair, provider, trade.SourceTxHash)
	default:
		return fmt.Sprintf("*Swap Failed*\n%s via %s has failed. Funds may be refunded automatically.\nTx: `%s`", pair, provider, trade.SourceTxHash)
	}
}
