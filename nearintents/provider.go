package nearintents

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/RaghavSood/ccrouter/cache"
	"github.com/RaghavSood/ccrouter/swaps"
)

const (
	quoteDeadline = 60 * time.Minute
	tokensTTL     = 15 * time.Minute
)

type Provider struct {
	api    API
	tokens *cache.Cache[[]TokenInfo]
	logger *logrus.Entry
	now    func() time.Time
}

func NewProvider(api API, logger *logrus.Logger) *Provider {
	return &Provider{
		api:    api,
		tokens: cache.New[[]TokenInfo](tokensTTL),
		logger: logger.WithField("pkg", "nearintents.Provider"),
		now:    time.Now,
	}
}

func (p *Provider) Type() swaps.ProviderType {
	return swaps.ProviderNearIntents
}

func (p *Provider) SupportsPair(from, to swaps.Blockchain) bool {
	_, ok := blockchainCodes[to]
	return originChains[from] && ok
}

// Calculate asks for a dry quote. The deposit address is only issued by
// Prepare.
func (p *Provider) Calculate(ctx context.Context, req swaps.Request) (swaps.Trade, error) {
	if !p.SupportsPair(req.From.Blockchain, req.To.Blockchain) {
		return swaps.Trade{}, swaps.NewProviderError(swaps.ProviderNearIntents, swaps.KindUnsupportedPair,
			"%s to %s is not routed by near intents", req.From.Blockchain, req.To.Blockchain)
	}

	recipient := req.Receiver
	if recipient == "" {
		recipient = recipientFor(req.To.Blockchain, req.Sender)
	}
	if recipient == "" {
		return swaps.Trade{}, swaps.NewProviderError(swaps.ProviderNearIntents, swaps.KindNoRoute, "a receiver is required for %s", req.To.Blockchain)
	}
	refund := req.Sender
	if refund == "" {
		refund = recipientFor(req.From.Blockchain, "")
	}

	return p.quote(ctx, true, req.From, req.To, req.From.ToRaw(req.FromAmount), req.SlippageBps(), refund, recipient)
}

// Prepare requests a real quote for target and fills in the deposit address.
func (p *Provider) Prepare(ctx context.Context, trade swaps.Trade, wallet, target string) (swaps.Trade, error) {
	if target == "" {
		return swaps.Trade{}, fmt.Errorf("near intents needs a destination address")
	}
	bps := swaps.ToleranceBps(trade.AmountOut, trade.AmountOutMin)
	fresh, err := p.quote(ctx, false, trade.From, trade.To, trade.AmountIn, bps, wallet, target)
	if err != nil {
		return swaps.Trade{}, err
	}
	d := fresh.Details.(swaps.NearIntentsDetails)
	if d.DepositAddress == "" {
		return swaps.Trade{}, fmt.Errorf("near intents returned no deposit address")
	}
	if trade.AmountOutMin != nil && fresh.AmountOut.Cmp(trade.AmountOutMin) < 0 {
		return swaps.Trade{}, swaps.NewProviderError(swaps.ProviderNearIntents, swaps.KindLowSlippage,
			"quote moved to %s, below the minimum %s", fresh.AmountOut, trade.AmountOutMin)
	}
	p.logger.WithFields(logrus.Fields{
		"deposit_address": d.DepositAddress,
		"correlation_id":  d.CorrelationID,
	}).Info("Prepared deposit")
	fresh.Path = trade.Path
	return fresh, nil
}

// OnTransactionHash submits the deposit hash so 1click picks it up early.
func (p *Provider) OnTransactionHash(ctx context.Context, trade swaps.Trade, txHash string) error {
	d, ok := trade.Details.(swaps.NearIntentsDetails)
	if !ok || d.DepositAddress == "" {
		return fmt.Errorf("near intents trade has no deposit address")
	}
	return p.api.SubmitDepositTx(ctx, txHash, d.DepositAddress)
}

// CheckStatus polls 1click by deposit address.
func (p *Provider) CheckStatus(ctx context.Context, txHash string, externalID string) (swaps.TradeStatus, error) {
	if externalID == "" {
		return swaps.TradeStatusPending, nil
	}

	status, err := p.api.ExecutionStatus(ctx, externalID)
	if err != nil {
		return swaps.TradeStatusUnknown, fmt.Errorf("nearintents get status: %w", err)
	}

	switch strings.ToUpper(status) {
	case "SUCCESS":
		return swaps.TradeStatusSuccess, nil
	case "REFUNDED":
		return swaps.TradeStatusFallback, nil
	case "FAILED":
		return swaps.TradeStatusFail, nil
	default:
		// PENDING_DEPOSIT, INCOMPLETE_DEPOSIT, PROCESSING, KNOWN_DEPOSIT_TX
		return swaps.TradeStatusPending, nil
	}
}

func (p *Provider) quote(ctx context.Context, dry bool, from, to swaps.Token, amountIn *big.Int, bps int, refund, recipient string) (swaps.Trade, error) {
	assetIn, err := p.tokenID(ctx, from)
	if err != nil {
		return swaps.Trade{}, err
	}
	assetOut, err := p.tokenID(ctx, to)
	if err != nil {
		return swaps.Trade{}, err
	}

	deadline := p.now().Add(quoteDeadline).UTC()
	res, err := p.api.Quote(ctx, QuoteParams{
		Dry:         dry,
		OriginAsset: assetIn,
		DestAsset:   assetOut,
		Amount:      amountIn.String(),
		SlippageBps: bps,
		RefundTo:    refund,
		Recipient:   recipient,
		Deadline:    deadline,
	})
	if err != nil {
		return swaps.Trade{}, classify(err)
	}

	out, ok := new(big.Int).SetString(res.AmountOut, 10)
	if !ok || out.Sign() <= 0 {
		return swaps.Trade{}, swaps.NewProviderError(swaps.ProviderNearIntents, swaps.KindNoRoute, "quote returned no output for %s", to.Key())
	}

	return swaps.Trade{
		Provider:          swaps.ProviderNearIntents,
		From:              from,
		To:                to,
		AmountIn:          new(big.Int).Set(amountIn),
		AmountOut:         out,
		AmountOutMin:      swaps.MinimumOut(out, bps),
		CryptoFee:         new(big.Int),
		EstimatedDuration: res.TimeEstimate,
		Details: swaps.NearIntentsDetails{
			AssetIn:        assetIn,
			AssetOut:       assetOut,
			DepositAddress: res.DepositAddress,
			CorrelationID:  res.CorrelationID,
			Deadline:       deadline,
		},
	}, nil
}

// tokenID resolves t through the built-in table first, then the cached
// 1click token list.
func (p *Provider) tokenID(ctx context.Context, t swaps.Token) (string, error) {
	if id, ok := StaticTokenID(t); ok {
		return id, nil
	}
	tokens, err := p.tokens.GetOrFetch("tokens", func() ([]TokenInfo, error) {
		return p.api.Tokens(ctx)
	})
	if err != nil {
		return "", classify(err)
	}
	if id, ok := matchToken(t, tokens); ok {
		return id, nil
	}
	return "", swaps.NewProviderError(swaps.ProviderNearIntents, swaps.KindUnsupportedPair, "token %s is not listed", t.Key())
}

// recipientFor returns an address usable in a dry quote on chain.
func recipientFor(chain swaps.Blockchain, fallback string) string {
	if chain.IsEVM() {
		if fallback != "" {
			return fallback
		}
		return "0x000000000000000000000000000000000000dEaD"
	}
	return dryRecipients[chain]
}

func classify(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return swaps.AsProviderError(swaps.ProviderNearIntents, err)
	}
	body := strings.ToLower(apiErr.Body)
	kind := swaps.KindNoRoute
	switch {
	case apiErr.StatusCode >= 500, apiErr.StatusCode == http.StatusTooManyRequests,
		apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
		kind = swaps.KindUnavailable
	case strings.Contains(body, "not supported"), strings.Contains(body, "unsupported"):
		kind = swaps.KindUnsupportedPair
	case strings.Contains(body, "too low"), strings.Contains(body, "minimum"), strings.Contains(body, "insufficient"):
		kind = swaps.KindLowLiquidity
	case strings.Contains(body, "slippage"):
		kind = swaps.KindLowSlippage
	}
	return &swaps.ProviderError{Provider: swaps.ProviderNearIntents, Kind: kind, Message: apiErr.Body, Err: err}
}
