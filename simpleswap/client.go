package simpleswap

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

const DefaultBaseURL = "https://api.simpleswap.io"

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a SimpleSwap client. httpClient may come from
// apilog.NewHTTPClient; nil uses a plain client.
func NewClient(apiKey, baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// APIError is a non-200 SimpleSwap reply.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("simpleswap %s returned %d: %s", e.Op, e.StatusCode, e.Body)
}

// GetEstimated returns the estimated output amount for a floating-rate swap,
// in human units of the output currency.
func (c *Client) GetEstimated(ctx context.Context, from, to, amount string) (string, error) {
	q := url.Values{}
	q.Set("fixed", "false")
	q.Set("currency_from", from)
	q.Set("currency_to", to)
	q.Set("amount", amount)

	// Response is a quoted string like "0.00123456"
	var result string
	if err := c.do(ctx, http.MethodGet, "get_estimated", q, nil, &result); err != nil {
		return "", err
	}
	return result, nil
}

// Range is the accepted input interval of a pair. Max is empty when
// unbounded.
type Range struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

func (c *Client) GetRanges(ctx context.Context, from, to string) (*Range, error) {
	q := url.Values{}
	q.Set("fixed", "false")
	q.Set("currency_from", from)
	q.Set("currency_to", to)

	var r Range
	if err := c.do(ctx, http.MethodGet, "get_ranges", q, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

type Exchange struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	AddressFrom string `json:"address_from"`
	AddressTo   string `json:"address_to"`
	AmountFrom  string `json:"expected_amount"`
	AmountTo    string `json:"amount_to"`
}

type CreateExchangeRequest struct {
	Fixed             bool   `json:"fixed"`
	CurrencyFrom      string `json:"currency_from"`
	CurrencyTo        string `json:"currency_to"`
	Amount            string `json:"amount"`
	AddressTo         string `json:"address_to"`
	ExtraIDTo         string `json:"extra_id_to"`
	UserRefundAddress string `json:"user_refund_address"`
}

// CreateExchange creates a new exchange and returns the exchange details including the deposit address.
func (c *Client) CreateExchange(ctx context.Context, req CreateExchangeRequest) (*Exchange, error) {
	var exchange Exchange
	if err := c.do(ctx, http.MethodPost, "create_exchange", nil, req, &exchange); err != nil {
		return nil, err
	}
	return &exchange, nil
}

// GetExchange retrieves the current status of an exchange.
func (c *Client) GetExchange(ctx context.Context, id string) (*Exchange, error) {
	q := url.Values{}
	q.Set("id", id)

	var exchange Exchange
	if err := c.do(ctx, http.MethodGet, "get_exchange", q, nil, &exchange); err != nil {
		return nil, err
	}
	return &exchange, nil
}

func (c *Client) do(ctx context.Context, method, op string, q url.Values, payload, out interface{}) error {
	if q == nil {
		q = url.Values{}
	}
	q.Set("api_key", c.apiKey)
	u := fmt.Sprintf("%s/%s?%s", c.baseURL, op, q.Encode())

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
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("simpleswap %s: %w", op, err)
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
