package houdini

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

// Status codes returned by /status.
const (
	statusCompleted = 4
	statusExpired   = 5
	statusRefunded  = 6
)

type Provider struct {
	client    *Client
	anonymous bool
	logger    *logrus.Entry
}

// NewProvider returns the Houdini provider. Anonymous providers route every
// swap through XMR so source and destination legs are unlinked.
func NewProvider(client *Client, anonymous bool, logger *logrus.Logger) *Provider {
	return &Provider{
		client:    client,
		anonymous: anonymous,
		logger:    logger.WithFields(logrus.Fields{"pkg": "houdini.Provider", "anonymous": anonymous}),
	}
}

func (p *Provider) Type() swaps.ProviderType {
	return swaps.ProviderHoudini
}

// SupportsPair requires an EVM source; the deposit is a plain transfer from
// the user's wallet.
func (p *Provider) SupportsPair(from, to swaps.Blockchain) bool {
	return from.IsEVM() && supportedChains[from] && supportedChains[to]
}

func (p *Provider) Calculate(ctx context.Context, req swaps.Request) (swaps.Trade, error) {
	fromSym, toSym, err := p.symbols(req.From, req.To)
	if err != nil {
		return swaps.Trade{}, err
	}

	amountIn := req.From.ToRaw(req.FromAmount)
	amount := req.From.FromRaw(amountIn)
	quote, err := p.client.GetQuote(ctx, QuoteParams{
		From:      fromSym,
		To:        toSym,
		Amount:    amount.String(),
		Anonymous: p.anonymous,
	})
	if err != nil {
		return swaps.Trade{}, p.classify(ctx, err, fromSym, toSym, amount)
	}

	if quote.Min > 0 && amount.LessThan(decimal.NewFromFloat(quote.Min)) {
		return swaps.Trade{}, swaps.NewProviderError(swaps.ProviderHoudini, swaps.KindLowLiquidity,
			"minimum amount is %v %s", quote.Min, fromSym)
	}
	if quote.Max > 0 && amount.GreaterThan(decimal.NewFromFloat(quote.Max)) {
		return swaps.Trade{}, swaps.NewProviderError(swaps.ProviderHoudini, swaps.KindLowLiquidity,
			"maximum amount is %v %s", quote.Max, fromSym)
	}

	out := decimal.NewFromFloat(quote.AmountOut)
	if !out.IsPositive() {
		return swaps.Trade{}, swaps.NewProviderError(swaps.ProviderHoudini, swaps.KindNoRoute, "no quote for %s to %s", fromSym, toSym)
	}
	outRaw := req.To.ToRaw(out)

	p.logger.WithFields(logrus.Fields{
		"from":       fromSym,
		"to":         toSym,
		"amount_out": out.String(),
		"swap":       quote.SwapName,
	}).Debug("Got quote")

	return swaps.Trade{
		Provider:          swaps.ProviderHoudini,
		From:              req.From,
		To:                req.To,
		AmountIn:          amountIn,
		AmountOut:         outRaw,
		AmountOutMin:      swaps.MinimumOut(outRaw, req.SlippageBps()),
		CryptoFee:         new(big.Int),
		EstimatedDuration: time.Duration(quote.Duration) * time.Minute,
		Details: swaps.HoudiniDetails{
			FromSymbol: fromSym,
			ToSymbol:   toSym,
			QuoteID:    quoteID(quote),
			Anonymous:  p.anonymous,
		},
	}, nil
}

// Prepare creates the exchange. The returned deposit address is where the
// wallet sends the source funds.
func (p *Provider) Prepare(ctx context.Context, trade swaps.Trade, wallet, target string) (swaps.Trade, error) {
	d, ok := trade.Details.(swaps.HoudiniDetails)
	if !ok {
		return swaps.Trade{}, fmt.Errorf("houdini cannot prepare %T", trade.Details)
	}
	if target == "" {
		return swaps.Trade{}, fmt.Errorf("houdini needs a destination address")
	}

	req := ExchangeRequest{
		Amount:    trade.From.FromRaw(trade.AmountIn).String(),
		From:      d.FromSymbol,
		To:        d.ToSymbol,
		AddressTo: target,
		Anonymous: d.Anonymous,
	}
	if d.Anonymous {
		req.InQuoteID, req.OutQuoteID = splitQuoteID(d.QuoteID)
	}

	exchange, err := p.client.CreateExchange(ctx, req)
	if err != nil {
		return swaps.Trade{}, fmt.Errorf("houdini create exchange: %w", err)
	}
	if exchange.HoudiniID == "" || exchange.SenderAddress == "" {
		return swaps.Trade{}, fmt.Errorf("houdini exchange has no id or deposit address")
	}

	p.logger.WithFields(logrus.Fields{
		"houdini_id": exchange.HoudiniID,
		"deposit":    exchange.SenderAddress,
		"wallet":     wallet,
	}).Info("Exchange created")

	if exchange.OutAmount > 0 {
		out := trade.To.ToRaw(decimal.NewFromFloat(exchange.OutAmount))
		if trade.AmountOutMin != nil && out.Cmp(trade.AmountOutMin) < 0 {
			return swaps.Trade{}, swaps.NewProviderError(swaps.ProviderHoudini, swaps.KindLowSlippage,
				"exchange output %s is below the quoted minimum %s", out, trade.AmountOutMin)
		}
		trade.AmountOut = out
	}

	d.HoudiniID = exchange.HoudiniID
	d.DepositAddress = exchange.SenderAddress
	trade.Details = d
	return trade, nil
}

func (p *Provider) CheckStatus(ctx context.Context, txHash string, externalID string) (swaps.TradeStatus, error) {
	if externalID == "" {
		return swaps.TradeStatusPending, nil
	}

	status, err := p.client.GetStatus(ctx, externalID)
	if err != nil {
		return swaps.TradeStatusUnknown, fmt.Errorf("houdini get status: %w", err)
	}

	switch {
	case status.Status == statusCompleted:
		return swaps.TradeStatusSuccess, nil
	case status.Status == statusRefunded:
		return swaps.TradeStatusFallback, nil
	case status.Status >= statusExpired:
		return swaps.TradeStatusFail, nil
	default:
		// 0 waiting, 1 confirming, 2 exchanging, 3 anonymizing
		return swaps.TradeStatusPending, nil
	}
}

func (p *Provider) symbols(from, to swaps.Token) (string, string, error) {
	if !p.SupportsPair(from.Blockchain, to.Blockchain) {
		return "", "", swaps.NewProviderError(swaps.ProviderHoudini, swaps.KindUnsupportedPair,
			"%s to %s is not routed by houdini", from.Blockchain, to.Blockchain)
	}
	fromSym, ok := TokenSymbol(from)
	if !ok {
		return "", "", swaps.NewProviderError(swaps.ProviderHoudini, swaps.KindUnsupportedPair, "unsupported source %s", from.Key())
	}
	toSym, ok := TokenSymbol(to)
	if !ok {
		return "", "", swaps.NewProviderError(swaps.ProviderHoudini, swaps.KindUnsupportedPair, "unsupported target %s", to.Key())
	}
	return fromSym, toSym, nil
}

// classify maps a quote failure, consulting /getMinMax so out-of-range
// amounts read as low liquidity.
func (p *Provider) classify(ctx context.Context, err error, fromSym, toSym string, amount decimal.Decimal) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return swaps.AsProviderError(swaps.ProviderHoudini, err)
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return &swaps.ProviderError{Provider: swaps.ProviderHoudini, Kind: swaps.KindUnavailable, Message: apiErr.Body, Err: err}
	}
	if apiErr.StatusCode >= 500 {
		return &swaps.ProviderError{Provider: swaps.ProviderHoudini, Kind: swaps.KindUnavailable, Message: apiErr.Body, Err: err}
	}
	body := strings.ToLower(apiErr.Body)
	if strings.Contains(body, "not supported") || strings.Contains(body, "invalid token") {
		return &swaps.ProviderError{Provider: swaps.ProviderHoudini, Kind: swaps.KindUnsupportedPair, Message: apiErr.Body, Err: err}
	}

	lo, hi, rangeErr := p.client.GetMinMax(ctx, fromSym, toSym, p.anonymous)
	if rangeErr == nil {
		if lo > 0 && amount.LessThan(decimal.NewFromFloat(lo)) {
			return swaps.NewProviderError(swaps.ProviderHoudini, swaps.KindLowLiquidity, "minimum amount is %v %s", lo, fromSym)
		}
		if hi > 0 && amount.GreaterThan(decimal.NewFromFloat(hi)) {
			return swaps.NewProviderError(swaps.ProviderHoudini, swaps.KindLowLiquidity, "maximum amount is %v %s", hi, fromSym)
		}
	}
	return &swaps.ProviderError{Provider: swaps.ProviderHoudini, Kind: swaps.KindNoRoute, Message: apiErr.Body, Err: err}
}

// quoteID packs anonymous in/out quote ids as "in/out".
func quoteID(q *QuoteResponse) string {
	if q.InQuoteID != "" || q.OutQuoteID != "" {
		return q.InQuoteID + "/" + q.OutQuoteID
	}
	return q.QuoteID
}

func splitQuoteID(id string) (in, out string) {
	in, out, _ = strings.Cut(id, "/")
	return in, out
}
