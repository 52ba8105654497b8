package nearintents

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/RaghavSood/ccrouter/swaps"
)

type fakeAPI struct {
	mu         sync.Mutex
	quotes     []QuoteParams
	amountOut  string
	quoteErr   error
	tokens     []TokenInfo
	tokenCalls int
	submitted  [][2]string
	status     string
}

func (f *fakeAPI) Quote(_ context.Context, p QuoteParams) (QuoteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes = append(f.quotes, p)
	if f.quoteErr != nil {
		return QuoteResult{}, f.quoteErr
	}
	res := QuoteResult{AmountOut: f.amountOut, TimeEstimate: 45 * time.Second, CorrelationID: "corr-1"}
	if !p.Dry {
		res.DepositAddress = "0x00000000000000000000000000000000000000D1"
	}
	return res, nil
}

func (f *fakeAPI) Tokens(context.Context) ([]TokenInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenCalls++
	return f.tokens, nil
}

func (f *fakeAPI) SubmitDepositTx(_ context.Context, txHash, depositAddress string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, [2]string{txHash, depositAddress})
	return nil
}

func (f *fakeAPI) ExecutionStatus(context.Context, string) (string, error) {
	return f.status, nil
}

func newTestProvider(api *fakeAPI) *Provider {
	if api.amountOut == "" {
		api.amountOut = "250000000000000000000000"
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	p := NewProvider(api, logger)
	p.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return p
}

func request() swaps.Request {
	return swaps.Request{
		From:              swaps.Base.NativeToken(),
		FromAmount:        decimal.RequireFromString("0.5"),
		To:                swaps.Near.NativeToken(),
		SlippageTolerance: decimal.RequireFromString("0.01"),
		Sender:            "0x00000000000000000000000000000000000000A1",
	}
}

func TestCalculateDryQuote(t *testing.T) {
	api := &fakeAPI{}
	p := newTestProvider(api)

	trade, err := p.Calculate(context.Background(), request())
	require.NoError(t, err)

	require.Len(t, api.quotes, 1)
	q := api.quotes[0]
	require.True(t, q.Dry)
	require.Equal(t, "nep141:base.omft.near", q.OriginAsset)
	require.Equal(t, "nep141:wrap.near", q.DestAsset)
	require.Equal(t, "500000000000000000", q.Amount)
	require.Equal(t, 100, q.SlippageBps)
	require.Equal(t, "intents.near", q.Recipient)
	require.Equal(t, "0x00000000000000000000000000000000000000A1", q.RefundTo)
	require.Equal(t, time.Unix(1_700_000_000, 0).Add(time.Hour).UTC(), q.Deadline)

	require.Equal(t, swaps.ProviderNearIntents, trade.Provider)
	require.Equal(t, "250000000000000000000000", trade.AmountOut.String())
	require.Equal(t, "247500000000000000000000", trade.AmountOutMin.String())
	require.Equal(t, 45*time.Second, trade.EstimatedDuration)

	d := trade.Details.(swaps.NearIntentsDetails)
	require.Empty(t, d.DepositAddress)
	require.Equal(t, "corr-1", d.CorrelationID)
}

func TestCalculateUsesTokenList(t *testing.T) {
	api := &fakeAPI{tokens: []TokenInfo{
		{AssetID: "nep141:arb-0xfd08.omft.near", Symbol: "USDT", Blockchain: "arb", Decimals: 6},
	}}
	p := newTestProvider(api)

	req := request()
	req.To = swaps.Token{Blockchain: swaps.Arbitrum, Symbol: "USDT", Address: "0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9", Decimals: 6}
	_, err := p.Calculate(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "nep141:arb-0xfd08.omft.near", api.quotes[0].DestAsset)
	require.Equal(t, req.Sender, api.quotes[0].Recipient, "EVM destinations default to the sender")

	req.To.Symbol = "DAI"
	_, err = p.Calculate(context.Background(), req)
	var pe *swaps.ProviderError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, swaps.KindUnsupportedPair, pe.Kind)
	require.Equal(t, 1, api.tokenCalls, "token list is cached")
}

func TestCalculateErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind swaps.ProviderErrorKind
	}{
		{name: "server", err: &APIError{Op: "quote", StatusCode: 502, Body: "bad gateway"}, kind: swaps.KindUnavailable},
		{name: "auth", err: &APIError{Op: "quote", StatusCode: 401, Body: "unauthorized"}, kind: swaps.KindUnavailable},
		{name: "too small", err: &APIError{Op: "quote", StatusCode: 400, Body: `{"message":"Amount is too low for bridge, try at least 1000000"}`}, kind: swaps.KindLowLiquidity},
		{name: "no route", err: &APIError{Op: "quote", StatusCode: 400, Body: `{"message":"Failed to get quote"}`}, kind: swaps.KindNoRoute},
		{name: "deadline", err: context.DeadlineExceeded, kind: swaps.KindTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(&fakeAPI{quoteErr: tt.err})
			_, err := p.Calculate(context.Background(), request())
			var pe *swaps.ProviderError
			require.True(t, errors.As(err, &pe), "got %v", err)
			require.Equal(t, tt.kind, pe.Kind)
		})
	}
}

func TestSupportsPair(t *testing.T) {
	p := newTestProvider(&fakeAPI{})
	require.True(t, p.SupportsPair(swaps.Base, swaps.Bitcoin))
	require.True(t, p.SupportsPair(swaps.Solana, swaps.Near))
	require.False(t, p.SupportsPair(swaps.Bitcoin, swaps.Base))
	require.False(t, p.SupportsPair(swaps.Base, swaps.Cosmos))
}

func TestPrepareAndHash(t *testing.T) {
	api := &fakeAPI{}
	p := newTestProvider(api)

	quoted, err := p.Calculate(context.Background(), request())
	require.NoError(t, err)

	prepared, err := p.Prepare(context.Background(), quoted, "0x00000000000000000000000000000000000000A1", "alice.near")
	require.NoError(t, err)

	last := api.quotes[len(api.quotes)-1]
	require.False(t, last.Dry)
	require.Equal(t, "alice.near", last.Recipient)
	require.Equal(t, 100, last.SlippageBps)

	d := prepared.Details.(swaps.NearIntentsDetails)
	require.Equal(t, "0x00000000000000000000000000000000000000D1", d.DepositAddress)

	require.NoError(t, p.OnTransactionHash(context.Background(), prepared, "0xhash"))
	require.Equal(t, [][2]string{{"0xhash", "0x00000000000000000000000000000000000000D1"}}, api.submitted)

	require.Error(t, p.OnTransactionHash(context.Background(), quoted, "0xhash"), "dry quotes have no deposit address")
}

func TestPrepareRejectsWorseQuote(t *testing.T) {
	api := &fakeAPI{}
	p := newTestProvider(api)

	quoted, err := p.Calculate(context.Background(), request())
	require.NoError(t, err)

	api.amountOut = new(big.Int).Sub(quoted.AmountOutMin, big.NewInt(1)).String()
	_, err = p.Prepare(context.Background(), quoted, "0x00000000000000000000000000000000000000A1", "alice.near")
	var pe *swaps.ProviderError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, swaps.KindLowSlippage, pe.Kind)
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		status string
		want   swaps.TradeStatus
	}{
		{"SUCCESS", swaps.TradeStatusSuccess},
		{"REFUNDED", swaps.TradeStatusFallback},
		{"FAILED", swaps.TradeStatusFail},
		{"PROCESSING", swaps.TradeStatusPending},
		{"PENDING_DEPOSIT", swaps.TradeStatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			p := newTestProvider(&fakeAPI{status: tt.status})
			got, err := p.CheckStatus(context.Background(), "0xhash", "0xdeposit")
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	p := newTestProvider(&fakeAPI{status: "SUCCESS"})
	got, err := p.CheckStatus(context.Background(), "0xhash", "")
	require.NoError(t, err)
	require.Equal(t, swaps.TradeStatusPending, got)
}
