package houdini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api-partner.houdiniswap.com"

type Client struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	clientIP   string
	httpClient *http.Client
}

// NewClient returns a Houdini partner API client. httpClient may come from
// apilog.NewHTTPClient; nil uses a plain client.
func NewClient(apiKey, apiSecret, baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		baseURL:    strings.TrimRight(baseURL, "/"),
		clientIP:   "127.0.0.1",
		httpClient: httpClient,
	}
}

func (c *Client) authHeader() string {
	return c.apiKey + ":" + c.apiSecret
}

// APIError is a non-200 Houdini reply.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("houdini %s returned %d: %s", e.Op, e.StatusCode, e.Body)
}

// QuoteResponse represents the response from GET /quote.
type QuoteResponse struct {
	AmountOut    float64 `json:"amountOut"`
	AmountIn     float64 `json:"amountIn"`
	AmountOutUsd float64 `json:"amountOutUsd"`
	QuoteID      string  `json:"quoteId"`
	InQuoteID    string  `json:"inQuoteId"`
	OutQuoteID   string  `json:"outQuoteId"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Duration     int     `json:"duration"` // minutes
	SwapName     string  `json:"swapName"`
}

// ExchangeResponse represents the response from POST /exchange.
type ExchangeResponse struct {
	ID              string  `json:"id"`
	HoudiniID       string  `json:"houdiniId"`
	SenderAddress   string  `json:"senderAddress"`
	ReceiverAddress string  `json:"receiverAddress"`
	Status          int     `json:"status"`
	InAmount        float64 `json:"inAmount"`
	OutAmount       float64 `json:"outAmount"`
	InSymbol        string  `json:"inSymbol"`
	OutSymbol       string  `json:"outSymbol"`
	Expires         string  `json:"expires"`
}

// StatusResponse represents the response from GET /status.
type StatusResponse struct {
	HoudiniID string `json:"houdiniId"`
	Status    int    `json:"status"`
	InStatus  int    `json:"inStatus"`
	HashURL   string `json:"hashUrl"`
}

// QuoteParams selects the route family. Anonymous quotes are routed through
// XMR and carry separate in/out quote ids.
type QuoteParams struct {
	From      string
	To        string
	Amount    string
	Anonymous bool
}

// ExchangeRequest is the body of POST /exchange.
type ExchangeRequest struct {
	Amount     string `json:"amount"`
	From       string `json:"from"`
	To         string `json:"to"`
	AddressTo  string `json:"addressTo"`
	Anonymous  bool   `json:"anonymous"`
	InQuoteID  string `json:"inQuoteId,omitempty"`
	OutQuoteID string `json:"outQuoteId,omitempty"`
	IP         string `json:"ip"`
	UserAgent  string `json:"userAgent"`
	Timezone   string `json:"timezone"`
}

// GetMinMax returns the [min, max] amounts (in source token units) for a pair.
func (c *Client) GetMinMax(ctx context.Context, from, to string, anonymous bool) (lo, hi float64, err error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	q.Set("anonymous", fmt.Sprintf("%t", anonymous))
	q.Set("cexOnly", "true")

	var result [2]float64
	if err := c.do(ctx, http.MethodGet, "getMinMax", q, nil, &result); err != nil {
		return 0, 0, err
	}
	return result[0], result[1], nil
}

// GetQuote requests a price quote for a swap. Standard quotes try CEX-only
// routes first and fall back to all routes.
func (c *Client) GetQuote(ctx context.Context, p QuoteParams) (*QuoteResponse, error) {
	if p.Anonymous {
		return c.getQuote(ctx, p, true)
	}
	quote, err := c.getQuote(ctx, p, true)
	if err != nil {
		// Fall back to all routes (includes "no wallet connect" / NWC)
		return c.getQuote(ctx, p, false)
	}
	return quote, nil
}

func (c *Client) getQuote(ctx context.Context, p QuoteParams, cexOnly bool) (*QuoteResponse, error) {
	q := url.Values{}
	q.Set("amount", p.Amount)
	q.Set("from", p.From)
	q.Set("to", p.To)
	q.Set("anonymous", fmt.Sprintf("%t", p.Anonymous))
	if p.Anonymous {
		q.Set("useXmr", "true")
	}
	q.Set("cexOnly", fmt.Sprintf("%t", cexOnly))

	var result QuoteResponse
	if err := c.do(ctx, http.MethodGet, "quote", q, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateExchange initiates a swap and returns the exchange details including the deposit address.
func (c *Client) CreateExchange(ctx context.Context, req ExchangeRequest) (*ExchangeResponse, error) {
	if req.IP == "" {
		req.IP = c.clientIP
	}
	if req.UserAgent == "" {
		req.UserAgent = "ccrouter"
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}

	var exchange ExchangeResponse
	if err := c.do(ctx, http.MethodPost, "exchange", nil, req, &exchange); err != nil {
		return nil, err
	}
	return &exchange, nil
}

// GetStatus retrieves the current status of an exchange by its Houdini ID.
func (c *Client) GetStatus(ctx context.Context, houdiniID string) (*StatusResponse, error) {
	q := url.Values{}
	q.Set("id", houdiniID)

	var status StatusResponse
	if err := c.do(ctx, http.MethodGet, "status", q, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) do(ctx context.Context, method, op string, q url.Values, payload, out interface{}) error {
	u := c.baseURL + "/" + op
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.authHeader())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("houdini %s: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing %s response: %w", op, err)
	}
	return nil
}
