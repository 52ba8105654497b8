package simpleswap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/RaghavSood/ccrouter/swaps"
)

// estimatedDuration is SimpleSwap's advertised typical completion time.
const estimatedDuration = 20 * time.Minute

type Provider struct {
	client *Client
	logger *logrus.Entry
}

func NewProvider(client *Client, logger *logrus.Logger) *Provider {
	return &Provider{
		client: client,
		logger: logger.WithField("pkg", "simpleswap.Provider"),
	}
}

func (p *Provider) Type() swaps.ProviderType {
	return swaps.ProviderSimpleSwap
}

// SupportsPair requires an EVM source because the deposit is a transfer
// signed by the user's wallet.
func (p *Provider) SupportsPair(from, to swaps.Blockchain) bool {
	return from.IsEVM() && supportedChains[from] && supportedChains[to]
}

func (p *Provider) Calculate(ctx context.Context, req swaps.Request) (swaps.Trade, error) {
	fromSym, toSym, err := p.symbols(req.From, req.To)
	if err != nil {
		return swaps.Trade{}, err
	}

	amount := req.From.FromRaw(req.From.ToRaw(req.FromAmount))
	estimated, err := p.client.GetEstimated(ctx, fromSym, toSym, amount.String())
	if err != nil {
		return swaps.Trade{}, p.classify(ctx, err, fromSym, toSym, amount)
	}

	out, err := decimal.NewFromString(estimated)
	if err != nil || !out.IsPositive() {
		return swaps.Trade{}, swaps.NewProviderError(swaps.ProviderSimpleSwap, swaps.KindNoRoute, "no estimate for %s to %s", fromSym, toSym)
	}
	outRaw := req.To.ToRaw(out)
	bps := req.SlippageBps()

	return swaps.Trade{
		Provider:          swaps.ProviderSimpleSwap,
		From:              req.From,
		To:                req.To,
		AmountIn:          req.From.ToRaw(req.FromAmount),
		AmountOut:         outRaw,
		AmountOutMin:      swaps.MinimumOut(outRaw, bps),
		CryptoFee:         new(big.Int),
		EstimatedDuration: estimatedDuration,
		Details: swaps.SimpleSwapDetails{
			CurrencyFrom: fromSym,
			CurrencyTo:   toSym,
		},
	}, nil
}

// Prepare creates the exchange and records its deposit address.
func (p *Provider) Prepare(ctx context.Context, trade swaps.Trade, wallet, target string) (swaps.Trade, error) {
	d, ok := trade.Details.(swaps.SimpleSwapDetails)
	if !ok {
		return swaps.Trade{}, fmt.Errorf("simpleswap cannot prepare %T", trade.Details)
	}
	if target == "" {
		return swaps.Trade{}, fmt.Errorf("simpleswap needs a destination address")
	}

	exchange, err := p.client.CreateExchange(ctx, CreateExchangeRequest{
		CurrencyFrom:      d.CurrencyFrom,
		CurrencyTo:        d.CurrencyTo,
		Amount:            trade.From.FromRaw(trade.AmountIn).String(),
		AddressTo:         target,
		UserRefundAddress: wallet,
	})
	if err != nil {
		return swaps.Trade{}, fmt.Errorf("simpleswap create exchange: %w", err)
	}
	if exchange.ID == "" || exchange.AddressFrom == "" {
		return swaps.Trade{}, fmt.Errorf("simpleswap exchange has no id or deposit address")
	}

	p.logger.WithFields(logrus.Fields{
		"exchange_id": exchange.ID,
		"deposit":     exchange.AddressFrom,
	}).Info("Exchange created")

	d.ExchangeID = exchange.ID
	d.DepositAddress = exchange.AddressFrom
	trade.Details = d
	if amt, err := decimal.NewFromString(exchange.AmountTo); err == nil && amt.IsPositive() {
		trade.AmountOut = trade.To.ToRaw(amt)
	}
	return trade, nil
}

func (p *Provider) CheckStatus(ctx context.Context, txHash string, externalID string) (swaps.TradeStatus, error) {
	if externalID == "" {
		return swaps.TradeStatusPending, nil
	}

	exchange, err := p.client.GetExchange(ctx, externalID)
	if err != nil {
		return swaps.TradeStatusUnknown, fmt.Errorf("simpleswap get exchange: %w", err)
	}

	switch exchange.Status {
	case "finished":
		return swaps.TradeStatusSuccess, nil
	case "refunded":
		return swaps.TradeStatusFallback, nil
	case "failed", "expired":
		return swaps.TradeStatusFail, nil
	default:
		// waiting, confirming, exchanging, sending
		return swaps.TradeStatusPending, nil
	}
}

func (p *Provider) symbols(from, to swaps.Token) (string, string, error) {
	if !p.SupportsPair(from.Blockchain, to.Blockchain) {
		return "", "", swaps.NewProviderError(swaps.ProviderSimpleSwap, swaps.KindUnsupportedPair,
			"%s to %s is not routed by simpleswap", from.Blockchain, to.Blockchain)
	}
	fromSym, ok := TokenSymbol(from)
	if !ok {
		return "", "", swaps.NewProviderError(swaps.ProviderSimpleSwap, swaps.KindUnsupportedPair, "unsupported source %s", from.Key())
	}
	toSym, ok := TokenSymbol(to)
	if !ok {
		return "", "", swaps.NewProviderError(swaps.ProviderSimpleSwap, swaps.KindUnsupportedPair, "unsupported target %s", to.Key())
	}
	return fromSym, toSym, nil
}

// classify maps an estimate failure. A 4xx reply is checked against the
// pair's range so amounts below the minimum read as low liquidity.
func (p *Provider) classify(ctx context.Context, err error, fromSym, toSym string, amount decimal.Decimal) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return swaps.AsProviderError(swaps.ProviderSimpleSwap, err)
	}
	if apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode == http.StatusUnauthorized {
		return &swaps.ProviderError{Provider: swaps.ProviderSimpleSwap, Kind: swaps.KindUnavailable, Message: apiErr.Body, Err: err}
	}
	if strings.Contains(strings.ToLower(apiErr.Body), "not supported") {
		return &swaps.ProviderError{Provider: swaps.ProviderSimpleSwap, Kind: swaps.KindUnsupportedPair, Message: apiErr.Body, Err: err}
	}

	r, rangeErr := p.client.GetRanges(ctx, fromSym, toSym)
	if rangeErr == nil {
		if lo, err := decimal.NewFromString(r.Min); err == nil && amount.LessThan(lo) {
			return swaps.NewProviderError(swaps.ProviderSimpleSwap, swaps.KindLowLiquidity, "minimum amount is %s %s", r.Min, strings.ToUpper(fromSym))
		}
		if hi, err := decimal.NewFromString(r.Max); err == nil && amount.GreaterThan(hi) {
			return swaps.NewProviderError(swaps.ProviderSimpleSwap, swaps.KindLowLiquidity, "maximum amount is %s %s", r.Max, strings.ToUpper(fromSym))
		}
	}
	return &swaps.ProviderError{Provider: swaps.ProviderSimpleSwap, Kind: swaps.KindNoRoute, Message: apiErr.Body, Err: err}
}
