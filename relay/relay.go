// Package relay forwards cross-chain trade details to the backend that
// completes deliveries on chains the source contract cannot address.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Notification describes a source transaction whose destination is not
// reachable by the source chain's contract.
type Notification struct {
	TxHash         string   `json:"txHash"`
	SourceChainID  int64    `json:"sourceChainId"`
	FromBlockchain string   `json:"fromBlockchain"`
	ToBlockchain   string   `json:"toBlockchain"`
	TargetAddress  string   `json:"targetAddress"`
	Path           []string `json:"path"`
	Provider       string   `json:"provider"`
}

// Notifier delivers notifications. Implementations may block; callers
// dispatch them through a Dispatcher.
type Notifier interface {
	NotifyCrossChain(ctx context.Context, n Notification) error
}

// Client posts notifications to an HTTP backend.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewClient(endpoint, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

func (c *Client) NotifyCrossChain(ctx context.Context, n Notification) error {
	jsonBody, err := json.Marshal(n)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("relay returned %d: %s", resp.StatusCode, body)
	}
	return nil
}
