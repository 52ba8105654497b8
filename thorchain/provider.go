package thorchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/RaghavSood/ccrouter/cache"
	"github.com/RaghavSood/ccrouter/swaps"
)

type Provider struct {
	client  *Client
	inbound *cache.Cache[[]InboundAddress]
	logger  *logrus.Entry
	now     func() time.Time
}

func NewProvider(client *Client, logger *logrus.Logger) *Provider {
	return &Provider{
		client:  client,
		inbound: cache.New[[]InboundAddress](time.Minute),
		logger:  logger.WithField("pkg", "thorchain.Provider"),
		now:     time.Now,
	}
}

func (p *Provider) Type() swaps.ProviderType {
	return swaps.ProviderThorchain
}

// SupportsPair is true for deposits from a router chain to any chain
// THORChain settles on.
func (p *Provider) SupportsPair(from, to swaps.Blockchain) bool {
	_, ok := chainCodes[to]
	return routerChains[from] && ok
}

func (p *Provider) Calculate(ctx context.Context, req swaps.Request) (swaps.Trade, error) {
	return p.quote(ctx, req.From, req.To, req.From.ToRaw(req.FromAmount), req.SlippageBps(), req.Receiver, req.Sender)
}

// Prepare re-quotes with the real destination so the trade carries a memo
// and a fresh vault. It fails when the new quote no longer meets the
// trade's minimum output.
func (p *Provider) Prepare(ctx context.Context, trade swaps.Trade, wallet, target string) (swaps.Trade, error) {
	if target == "" {
		return swaps.Trade{}, fmt.Errorf("thorchain needs a destination address")
	}
	bps := swaps.ToleranceBps(trade.AmountOut, trade.AmountOutMin)
	fresh, err := p.quote(ctx, trade.From, trade.To, trade.AmountIn, bps, target, wallet)
	if err != nil {
		return swaps.Trade{}, err
	}
	if trade.AmountOutMin != nil && fresh.AmountOut.Cmp(trade.AmountOutMin) < 0 {
		return swaps.Trade{}, swaps.NewProviderError(swaps.ProviderThorchain, swaps.KindLowSlippage,
			"quote moved to %s, below the minimum %s", fresh.AmountOut, trade.AmountOutMin)
	}
	d := fresh.Details.(swaps.ThorchainDetails)
	if d.Memo == "" {
		return swaps.Trade{}, fmt.Errorf("thorchain quote for %s returned no memo", target)
	}
	p.logger.WithFields(logrus.Fields{
		"memo":   d.Memo,
		"vault":  d.Vault.Hex(),
		"router": d.Router.Hex(),
	}).Info("Prepared deposit")
	fresh.Path = trade.Path
	return fresh, nil
}

func (p *Provider) quote(ctx context.Context, from, to swaps.Token, amountIn *big.Int, bps int, destination, refund string) (swaps.Trade, error) {
	if !p.SupportsPair(from.Blockchain, to.Blockchain) {
		return swaps.Trade{}, swaps.NewProviderError(swaps.ProviderThorchain, swaps.KindUnsupportedPair,
			"%s to %s is not routed by thorchain", from.Blockchain, to.Blockchain)
	}
	fromAsset, _ := Asset(from)
	toAsset, _ := Asset(to)

	inbound, err := p.inboundFor(ctx, from.Blockchain)
	if err != nil {
		return swaps.Trade{}, err
	}

	q, err := p.client.GetQuote(ctx, QuoteParams{
		FromAsset:    fromAsset,
		ToAsset:      toAsset,
		Amount:       toThorAmount(amountIn, from.Decimals).String(),
		Destination:  destination,
		RefundAddr:   refund,
		ToleranceBps: bps,
	})
	if err != nil {
		return swaps.Trade{}, classify(err)
	}

	expected, ok := new(big.Int).SetString(q.ExpectedAmountOut, 10)
	if !ok || expected.Sign() <= 0 {
		return swaps.Trade{}, swaps.NewProviderError(swaps.ProviderThorchain, swaps.KindNoRoute,
			"quote returned no output for %s", toAsset)
	}
	out := fromThorAmount(expected, to.Decimals)

	router := q.Router
	if router == "" {
		router = inbound.Router
	}
	vault := q.InboundAddress
	if vault == "" {
		vault = inbound.Address
	}

	expiry := q.Expiry
	if floor := p.now().Unix() + minExpirySeconds; expiry < floor {
		expiry = floor
	}

	duration := time.Duration(q.TotalSwapSeconds) * time.Second
	if duration == 0 {
		duration = time.Duration(q.InboundConfirmSecs+q.OutboundDelaySecs) * time.Second
	}

	var fees string
	if q.Fees.Total != "" {
		fees = q.Fees.Total + " " + q.Fees.Asset
	}

	p.logger.WithFields(logrus.Fields{
		"from": fromAsset,
		"to":   toAsset,
		"out":  out.String(),
	}).Debug("Quote received")

	return swaps.Trade{
		Provider:          swaps.ProviderThorchain,
		From:              from,
		To:                to,
		AmountIn:          new(big.Int).Set(amountIn),
		AmountOut:         out,
		AmountOutMin:      swaps.MinimumOut(out, bps),
		CryptoFee:         new(big.Int),
		EstimatedDuration: duration,
		Details: swaps.ThorchainDetails{
			Router:  common.HexToAddress(router),
			Vault:   common.HexToAddress(vault),
			Memo:    q.Memo,
			Expiry:  expiry,
			Fees:    fees,
			Warning: q.Warning,
		},
	}, nil
}

// inboundFor returns the inbound address of chain, failing when the chain
// is halted or has no router.
func (p *Provider) inboundFor(ctx context.Context, chain swaps.Blockchain) (InboundAddress, error) {
	addrs, err := p.inbound.GetOrFetch("inbound", func() ([]InboundAddress, error) {
		return p.client.GetInboundAddresses(ctx)
	})
	if err != nil {
		return InboundAddress{}, classify(err)
	}
	code := chainCodes[chain]
	for _, a := range addrs {
		if !strings.EqualFold(a.Chain, code) {
			continue
		}
		if a.Halted {
			return InboundAddress{}, swaps.NewProviderError(swaps.ProviderThorchain, swaps.KindUnavailable, "%s inbound is halted", code)
		}
		if a.Router == "" {
			return InboundAddress{}, swaps.NewProviderError(swaps.ProviderThorchain, swaps.KindUnsupportedPair, "%s has no router", code)
		}
		return a, nil
	}
	return InboundAddress{}, swaps.NewProviderError(swaps.ProviderThorchain, swaps.KindUnsupportedPair, "%s has no inbound address", code)
}

// CheckStatus maps thornode tx stages to a trade status. Transactions
// thornode has not observed yet are pending.
func (p *Provider) CheckStatus(ctx context.Context, txHash string, externalID string) (swaps.TradeStatus, error) {
	status, err := p.client.GetTxStatus(ctx, txHash)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return swaps.TradeStatusPending, nil
		}
		return swaps.TradeStatusUnknown, err
	}

	for _, out := range status.OutTxs {
		if strings.HasPrefix(strings.ToUpper(out.Memo), "REFUND") {
			return swaps.TradeStatusFallback, nil
		}
	}

	stages := status.Stages
	// Cross-chain swaps: completed when outbound is signed
	if stages.OutboundSigned != nil && stages.OutboundSigned.Completed {
		return swaps.TradeStatusSuccess, nil
	}
	// Native Thorchain swaps (e.g. to RUNE): no outbound_signed stage,
	// completed when swap is finalised
	if stages.OutboundSigned == nil && stages.SwapFinalised != nil && stages.SwapFinalised.Completed {
		return swaps.TradeStatusSuccess, nil
	}
	return swaps.TradeStatusPending, nil
}

// classify turns thornode errors into provider errors.
func classify(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return swaps.AsProviderError(swaps.ProviderThorchain, err)
	}
	msg := strings.ToLower(apiErr.Message)
	if msg == "" {
		msg = strings.ToLower(apiErr.Body)
	}

	kind := swaps.KindNoRoute
	switch {
	case apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests:
		kind = swaps.KindUnavailable
	case strings.Contains(msg, "halted"):
		kind = swaps.KindUnavailable
	case strings.Contains(msg, "pool does not exist"), strings.Contains(msg, "unknown asset"), strings.Contains(msg, "invalid symbol"):
		kind = swaps.KindUnsupportedPair
	case strings.Contains(msg, "price limit"), strings.Contains(msg, "tolerance"):
		kind = swaps.KindLowSlippage
	case strings.Contains(msg, "not enough asset to pay for fees"), strings.Contains(msg, "dust threshold"), strings.Contains(msg, "insufficient"):
		kind = swaps.KindLowLiquidity
	}
	text := apiErr.Message
	if text == "" {
		text = apiErr.Body
	}
	return &swaps.ProviderError{Provider: swaps.ProviderThorchain, Kind: kind, Message: text, Err: err}
}
