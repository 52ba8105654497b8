package nearintents

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
)

// QuoteParams is an EXACT_INPUT 1click quote. Dry quotes carry no deposit
// address.
type QuoteParams struct {
	Dry         bool
	OriginAsset string
	DestAsset   string
	Amount      string // smallest unit of the origin asset
	SlippageBps int
	RefundTo    string
	Recipient   string
	Deadline    time.Time
}

// QuoteResult is the part of a 1click quote the provider uses.
type QuoteResult struct {
	DepositAddress string
	AmountOut      string // smallest unit of the destination asset
	TimeEstimate   time.Duration
	CorrelationID  string
}

// TokenInfo is one entry of the 1click token list.
type TokenInfo struct {
	AssetID    string
	Symbol     string
	Blockchain string
	Decimals   int32
}

// API is the 1click surface the provider depends on. *Client implements it.
type API interface {
	Quote(ctx context.Context, p QuoteParams) (QuoteResult, error)
	Tokens(ctx context.Context) ([]TokenInfo, error)
	SubmitDepositTx(ctx context.Context, txHash, depositAddress string) error
	ExecutionStatus(ctx context.Context, depositAddress string) (string, error)
}

// APIError is a non-2xx 1click reply.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nearintents %s returned %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client wraps the 1click SDK with API key authentication.
type Client struct {
	api    *oneclick.APIClient
	apiKey string
}

// NewClient creates a 1click client. baseURL overrides the SDK's default
// server; httpClient may come from apilog.NewHTTPClient.
func NewClient(apiKey, baseURL string, httpClient *http.Client) *Client {
	cfg := oneclick.NewConfiguration()
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if baseURL != "" {
		cfg.Servers = oneclick.ServerConfigurations{{URL: strings.TrimRight(baseURL, "/")}}
	}
	return &Client{
		api:    oneclick.NewAPIClient(cfg),
		apiKey: apiKey,
	}
}

// authCtx returns a context with the bearer token set.
func (c *Client) authCtx(ctx context.Context) context.Context {
	if c.apiKey == "" {
		return ctx
	}
	return context.WithValue(ctx, oneclick.ContextAccessToken, c.apiKey)
}

// Quote requests a swap quote from the 1click API.
func (c *Client) Quote(ctx context.Context, p QuoteParams) (QuoteResult, error) {
	req := oneclick.NewQuoteRequest(
		p.Dry,               // dry
		"EXACT_INPUT",       // swapType
		100,                 // slippageTolerance, replaced below
		p.OriginAsset,       // originAsset
		"ORIGIN_CHAIN",      // depositType
		p.DestAsset,         // destinationAsset
		p.Amount,            // amount
		p.RefundTo,          // refundTo
		"ORIGIN_CHAIN",      // refundType
		p.Recipient,         // recipient
		"DESTINATION_CHAIN", // recipientType
		p.Deadline,          // deadline
	)
	setNumber(&req.SlippageTolerance, p.SlippageBps)
	depositMode := "SIMPLE"
	req.DepositMode = &depositMode

	resp, httpResp, err := c.api.OneClickAPI.GetQuote(c.authCtx(ctx)).QuoteRequest(*req).Execute()
	if err != nil {
		return QuoteResult{}, apiError("quote", httpResp, err)
	}
	if resp == nil {
		return QuoteResult{}, fmt.Errorf("nearintents quote: empty response")
	}

	quote := resp.GetQuote()
	return QuoteResult{
		DepositAddress: quote.GetDepositAddress(),
		AmountOut:      quote.GetAmountOut(),
		TimeEstimate:   time.Duration(quote.GetTimeEstimate()) * time.Second,
		CorrelationID:  resp.GetCorrelationId(),
	}, nil
}

// Tokens lists the assets 1click can route.
func (c *Client) Tokens(ctx context.Context) ([]TokenInfo, error) {
	resp, httpResp, err := c.api.OneClickAPI.GetTokens(c.authCtx(ctx)).Execute()
	if err != nil {
		return nil, apiError("tokens", httpResp, err)
	}
	out := make([]TokenInfo, 0, len(resp))
	for i := range resp {
		t := resp[i]
		out = append(out, TokenInfo{
			AssetID:    t.GetAssetId(),
			Symbol:     t.GetSymbol(),
			Blockchain: string(t.GetBlockchain()),
			Decimals:   int32(t.GetDecimals()),
		})
	}
	return out, nil
}

// SubmitDepositTx notifies 1click of the deposit transaction hash to speed up processing.
func (c *Client) SubmitDepositTx(ctx context.Context, txHash, depositAddress string) error {
	req := *oneclick.NewSubmitDepositTxRequest(txHash, depositAddress)
	_, httpResp, err := c.api.OneClickAPI.SubmitDepositTx(c.authCtx(ctx)).SubmitDepositTxRequest(req).Execute()
	if err != nil {
		return apiError("deposit submit", httpResp, err)
	}
	return nil
}

// ExecutionStatus returns the raw 1click status of a deposit address.
func (c *Client) ExecutionStatus(ctx context.Context, depositAddress string) (string, error) {
	resp, httpResp, err := c.api.OneClickAPI.GetExecutionStatus(c.authCtx(ctx)).DepositAddress(depositAddress).Execute()
	if err != nil {
		return "", apiError("status", httpResp, err)
	}
	return string(resp.GetStatus()), nil
}

func apiError(op string, httpResp *http.Response, err error) error {
	if httpResp == nil {
		return fmt.Errorf("nearintents %s: %w", op, err)
	}
	body := err.Error()
	if b, ok := err.(interface{ Body() []byte }); ok && len(b.Body()) > 0 {
		body = string(b.Body())
	}
	return &APIError{Op: op, StatusCode: httpResp.StatusCode, Body: body}
}

// setNumber assigns v to a numeric SDK field whatever its width.
func setNumber[T ~int32 | ~int64 | ~float32 | ~float64](dst *T, v int) {
	*dst = T(v)
}
