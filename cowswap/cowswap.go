// Package cowswap provides a client and swap provider for the CoW Protocol
// (CoWSwap) API. Orders are presigned: the wallet calls setPreSignature on
// the settlement contract instead of signing EIP-712 off-chain.
package cowswap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RaghavSood/ccrouter/swaps"
)

const (
	DefaultBaseURL = "https://api.cow.fi"

	appDataJSON = `{"version":"1.3.0","metadata":{}}`
	appDataHash = "0xa872cd1c41362821123e195e2dc6a3f19502a451e1fb2a1f861131526e98fdc7"
)

// networks maps supported chains to their CoW API network segment.
var networks = map[swaps.Blockchain]string{
	swaps.Ethereum:  "mainnet",
	swaps.Base:      "base",
	swaps.Avalanche: "avalanche",
	swaps.Arbitrum:  "arbitrum_one",
	swaps.Polygon:   "polygon",
	swaps.BSC:       "bnb",
}

// Client handles CoW Protocol API interactions.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// APIError is a non-success reply. ErrorType is CoW's machine-readable
// error code, e.g. "NoLiquidity".
type APIError struct {
	Op          string
	StatusCode  int
	ErrorType   string
	Description string
	Body        string
}

func (e *APIError) Error() string {
	if e.ErrorType != "" {
		return fmt.Sprintf("cowswap %s returned %d: %s: %s", e.Op, e.StatusCode, e.ErrorType, e.Description)
	}
	return fmt.Sprintf("cowswap %s returned %d: %s", e.Op, e.StatusCode, e.Body)
}

// --- API types ---

// QuoteRequest is the POST body for /api/v1/quote.
type QuoteRequest struct {
	SellToken           string `json:"sellToken"`
	BuyToken            string `json:"buyToken"`
	Receiver            string `json:"receiver"`
	SellAmountBeforeFee string `json:"sellAmountBeforeFee"`
	Kind                string `json:"kind"`
	From                string `json:"from"`
	AppData             string `json:"appData"`
	AppDataHash         string `json:"appDataHash"`
	SigningScheme       string `json:"signingScheme"`
}

// QuoteResult is the response from /api/v1/quote.
type QuoteResult struct {
	Quote      Order  `json:"quote"`
	From       string `json:"from"`
	Expiration string `json:"expiration"`
	ID         int64  `json:"id"`
}

// OrderSubmission is the POST body for /api/v1/orders.
type OrderSubmission struct {
	Order
	SigningScheme string `json:"signingScheme"`
	Signature     string `json:"signature"`
	From          string `json:"from"`
	QuoteID       int64  `json:"quoteId,omitempty"`
}

// OrderStatus is the subset of GET /api/v1/orders/{uid} we read.
// Status is one of presignaturePending, open, fulfilled, cancelled, expired.
type OrderStatus struct {
	UID    string `json:"uid"`
	Status string `json:"status"`
}

// GetQuote requests a sell quote. The quote is for a presigned order.
func (c *Client) GetQuote(ctx context.Context, chain swaps.Blockchain, req QuoteRequest) (*QuoteResult, error) {
	req.Kind = "sell"
	req.AppData = appDataJSON
	req.AppDataHash = appDataHash
	req.SigningScheme = "presign"

	var qr QuoteResult
	if err := c.do(ctx, chain, http.MethodPost, "quote", "quote", req, &qr); err != nil {
		return nil, err
	}
	return &qr, nil
}

// SubmitOrder posts a presign order and returns its UID as reported by the API.
func (c *Client) SubmitOrder(ctx context.Context, chain swaps.Blockchain, order Order, owner string, quoteID int64) (string, error) {
	sub := OrderSubmission{
		Order:         order,
		SigningScheme: "presign",
		Signature:     owner,
		From:          owner,
		QuoteID:       quoteID,
	}

	var uid string
	if err := c.do(ctx, chain, http.MethodPost, "submit order", "orders", sub, &uid); err != nil {
		return "", err
	}
	return uid, nil
}

// GetOrder fetches an order's current status.
func (c *Client) GetOrder(ctx context.Context, chain swaps.Blockchain, uid string) (*OrderStatus, error) {
	var status OrderStatus
	if err := c.do(ctx, chain, http.MethodGet, "order status", "orders/"+uid, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) do(ctx context.Context, chain swaps.Blockchain, method, op, path string, payload, out interface{}) error {
	network, ok := networks[chain]
	if !ok {
		return fmt.Errorf("chain %q not supported by CoW Protocol", chain)
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	url := fmt.Sprintf("%s/%s/api/v1/%s", c.baseURL, network, path)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cowswap %s: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
		var e struct {
			ErrorType   string `json:"errorType"`
			Description string `json:"description"`
		}
		if json.Unmarshal(respBody, &e) == nil {
			apiErr.ErrorType = e.ErrorType
			apiErr.Description = e.Description
		}
		return apiErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding %s: %w", op, err)
	}
	return nil
}
