package simpleswap

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/RaghavSood/ccrouter/swaps"
)

type simpleswapAPI struct {
	mu         sync.Mutex
	estimate   string
	estStatus  int
	estBody    string
	min        string
	created    []CreateExchangeRequest
	queries    []url.Values
	exchStatus string
}

func (s *simpleswapAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/get_estimated", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.queries = append(s.queries, r.URL.Query())
		s.mu.Unlock()
		if s.estStatus != 0 {
			w.WriteHeader(s.estStatus)
			_, _ = io.WriteString(w, s.estBody)
			return
		}
		_ = json.NewEncoder(w).Encode(s.estimate)
	})
	mux.HandleFunc("/get_ranges", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Range{Min: s.min})
	})
	mux.HandleFunc("/create_exchange", func(w http.ResponseWriter, r *http.Request) {
		var req CreateExchangeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.mu.Lock()
		s.created = append(s.created, req)
		s.mu.Unlock()
		_ = json.NewEncoder(w).Encode(Exchange{
			ID:          "ex-123",
			Status:      "waiting",
			AddressFrom: "0x00000000000000000000000000000000000000E1",
			AmountTo:    "0.00151",
		})
	})
	mux.HandleFunc("/get_exchange", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Exchange{ID: r.URL.Query().Get("id"), Status: s.exchStatus})
	})
	return mux
}

func newTestProvider(t *testing.T, api *simpleswapAPI) *Provider {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewProvider(NewClient("test-key", srv.URL, srv.Client()), logger)
}

func request() swaps.Request {
	usdc, _ := swaps.ParseToken("base.USDC")
	return swaps.Request{
		From:              usdc,
		FromAmount:        decimal.NewFromInt(100),
		To:                swaps.Bitcoin.NativeToken(),
		SlippageTolerance: decimal.RequireFromString("0.03"),
	}
}

func TestCalculate(t *testing.T) {
	api := &simpleswapAPI{estimate: "0.0015"}
	p := newTestProvider(t, api)

	trade, err := p.Calculate(context.Background(), request())
	require.NoError(t, err)

	q := api.queries[0]
	require.Equal(t, "usdcbase", q.Get("currency_from"))
	require.Equal(t, "btc", q.Get("currency_to"))
	require.Equal(t, "100", q.Get("amount"))
	require.Equal(t, "test-key", q.Get("api_key"))

	require.Equal(t, "150000", trade.AmountOut.String())
	require.Equal(t, "145500", trade.AmountOutMin.String())
	require.Equal(t, "100000000", trade.AmountIn.String())

	d := trade.Details.(swaps.SimpleSwapDetails)
	require.Equal(t, "usdcbase", d.CurrencyFrom)
	require.Empty(t, d.DepositAddress)
}

func TestCalculateErrors(t *testing.T) {
	tests := []struct {
		name string
		api  *simpleswapAPI
		req  func() swaps.Request
		kind swaps.ProviderErrorKind
	}{
		{name: "below minimum", api: &simpleswapAPI{estStatus: 422, estBody: `{"code":422,"description":"Amount does not fall within the range"}`, min: "150"}, kind: swaps.KindLowLiquidity},
		{name: "no route", api: &simpleswapAPI{estStatus: 422, estBody: `{"code":422}`, min: "10"}, kind: swaps.KindNoRoute},
		{name: "pair not supported", api: &simpleswapAPI{estStatus: 400, estBody: "Pair is not supported"}, kind: swaps.KindUnsupportedPair},
		{name: "outage", api: &simpleswapAPI{estStatus: 500, estBody: "oops"}, kind: swaps.KindUnavailable},
		{name: "non-evm source", api: &simpleswapAPI{}, req: func() swaps.Request {
			r := request()
			r.From = swaps.Bitcoin.NativeToken()
			r.To = swaps.Ethereum.NativeToken()
			return r
		}, kind: swaps.KindUnsupportedPair},
		{name: "unmapped token", api: &simpleswapAPI{}, req: func() swaps.Request {
			r := request()
			r.To = swaps.Token{Blockchain: swaps.Bitcoin, Symbol: "ORDI", Decimals: 18}
			return r
		}, kind: swaps.KindUnsupportedPair},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, tt.api)
			req := request()
			if tt.req != nil {
				req = tt.req()
			}
			_, err := p.Calculate(context.Background(), req)
			var pe *swaps.ProviderError
			require.ErrorAs(t, err, &pe)
			require.Equal(t, tt.kind, pe.Kind)
		})
	}
}

func TestPrepareCreatesExchange(t *testing.T) {
	api := &simpleswapAPI{estimate: "0.0015"}
	p := newTestProvider(t, api)

	quoted, err := p.Calculate(context.Background(), request())
	require.NoError(t, err)

	prepared, err := p.Prepare(context.Background(), quoted, "0x00000000000000000000000000000000000000A1", "bc1qtarget")
	require.NoError(t, err)

	require.Len(t, api.created, 1)
	c := api.created[0]
	require.Equal(t, "usdcbase", c.CurrencyFrom)
	require.Equal(t, "btc", c.CurrencyTo)
	require.Equal(t, "100", c.Amount)
	require.Equal(t, "bc1qtarget", c.AddressTo)
	require.Equal(t, "0x00000000000000000000000000000000000000A1", c.UserRefundAddress)

	d := prepared.Details.(swaps.SimpleSwapDetails)
	require.Equal(t, "ex-123", d.ExchangeID)
	require.Equal(t, "0x00000000000000000000000000000000000000E1", d.DepositAddress)
	require.Equal(t, "151000", prepared.AmountOut.String())
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		status string
		want   swaps.TradeStatus
	}{
		{"finished", swaps.TradeStatusSuccess},
		{"refunded", swaps.TradeStatusFallback},
		{"failed", swaps.TradeStatusFail},
		{"expired", swaps.TradeStatusFail},
		{"exchanging", swaps.TradeStatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			p := newTestProvider(t, &simpleswapAPI{exchStatus: tt.status})
			got, err := p.CheckStatus(context.Background(), "0xhash", "ex-123")
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
