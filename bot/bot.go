package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/RaghavSood/ccrouter/aggregator"
	"github.com/RaghavSood/ccrouter/config"
	"github.com/RaghavSood/ccrouter/db"
	"github.com/RaghavSood/ccrouter/swaps"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Store lists the wallet's recorded trades. *db.Store implements it.
type Store interface {
	ListRecentTrades(ctx context.Context, owner string) ([]db.RecentTrade, error)
}

// Bot answers operator commands in the configured chat: wallet address,
// recent trades and the dangerous-provider list.
type Bot struct {
	api    API
	chatID int64
	owner  common.Address
	store  Store
	engine *aggregator.Engine
	logger *logrus.Entry
}

// Connect authorizes token against the Telegram API.
func Connect(token string, logger *logrus.Logger) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating bot API: %w", err)
	}
	logger.WithField("account", api.Self.UserName).Info("Authorized on Telegram")
	return api, nil
}

func New(api API, chatID int64, owner common.Address, store Store, engine *aggregator.Engine, logger *logrus.Logger) *Bot {
	return &Bot{
		api:    api,
		chatID: chatID,
		owner:  owner,
		store:  store,
		engine: engine,
		logger: logger.WithField("pkg", "bot.Bot"),
	}
}

// Run handles updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		return
	}

	if msg.Chat == nil {
		return
	}
	if msg.Chat.ID != b.chatID {
		b.reply(msg, "You are not authorized to use this bot.")
		return
	}

	switch msg.Command() {
	case "start":
		b.reply(msg, "ccrouter is running. Commands: /address, /trades, /providers, /danger <provider>, /safe <provider>")
	case "address":
		b.reply(msg, fmt.Sprintf("Wallet address: `%s`", b.owner.Hex()))
	case "trades":
		b.handleTrades(ctx, msg)
	case "providers":
		b.handleProviders(msg)
	case "danger", "safe":
		b.handleDangerous(msg, msg.Command() == "danger")
	default:
		b.reply(msg, "Unknown command. Use /start to see the available commands.")
	}
}

func (b *Bot) handleTrades(ctx context.Context, msg *tgbotapi.Message) {
	trades, err := b.store.ListRecentTrades(ctx, b.owner.Hex())
	if err != nil {
		b.logger.WithError(err).Error("Listing recent trades")
		b.reply(msg, fmt.Sprintf("Error: %v", err))
		return
	}
	if len(trades) == 0 {
		b.reply(msg, "No trades yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("*Recent trades*\n")
	for i, t := range trades {
		if i == 10 {
			break
		}
		fmt.Fprintf(&sb, "%s %s → %s %s via %s: %s\n",
			t.FromAmount, t.FromToken, t.ToAmount, t.ToToken,
			swaps.ProviderType(t.Provider).DisplayName(), t.Status)
	}
	b.reply(msg, sb.String())
}

func (b *Bot) handleProviders(msg *tgbotapi.Message) {
	dangerous := b.engine.Session().Dangerous

	var sb strings.Builder
	sb.WriteString("*Providers*\n")
	for _, p := range b.engine.Providers() {
		mark := ""
		if dangerous.Contains(p) {
			mark = " (dangerous)"
		}
		fmt.Fprintf(&sb, "%s `%s`%s\n", p.DisplayName(), p, mark)
	}
	b.reply(msg, sb.String())
}

func (b *Bot) handleDangerous(msg *tgbotapi.Message, dangerous bool) {
	p, err := config.ParseProvider(msg.CommandArguments())
	if err != nil {
		b.reply(msg, fmt.Sprintf("Error: %v", err))
		return
	}
	if dangerous {
		b.engine.MarkDangerous(p)
		b.reply(msg, fmt.Sprintf("%s is now ranked last.", p.DisplayName()))
		return
	}
	b.engine.UnmarkDangerous(p)
	b.reply(msg, fmt.Sprintf("%s is ranked normally again.", p.DisplayName()))
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyToMessageID = msg.MessageID
	reply.ParseMode = "Markdown"
	if _, err := b.api.Send(reply); err != nil {
		b.logger.WithError(err).Warn("Sending reply")
	}
}
