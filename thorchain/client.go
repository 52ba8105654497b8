package thorchain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

type QuoteResponse struct {
	InboundAddress      string    `json:"inbound_address"`
	Router              string    `json:"router"`
	Expiry              int64     `json:"expiry"`
	Memo                string    `json:"memo"`
	ExpectedAmountOut   string    `json:"expected_amount_out"`
	DustThreshold       string    `json:"dust_threshold"`
	RecommendedMinIn    string    `json:"recommended_min_amount_in"`
	RecommendedGasRate  string    `json:"recommended_gas_rate"`
	GasRateUnits        string    `json:"gas_rate_units"`
	Fees                QuoteFees `json:"fees"`
	OutboundDelaySecs   int64     `json:"outbound_delay_seconds"`
	InboundConfirmSecs  int64     `json:"inbound_confirmation_seconds"`
	TotalSwapSeconds    int64     `json:"total_swap_seconds"`
	StreamingSwapBlocks int64     `json:"streaming_swap_blocks"`
	MaxStreamingQty     int64     `json:"max_streaming_quantity"`
	Warning             string    `json:"warning"`
	Notes               string    `json:"notes"`
}

type QuoteFees struct {
	Asset       string `json:"asset"`
	Affiliate   string `json:"affiliate"`
	Outbound    string `json:"outbound"`
	Liquidity   string `json:"liquidity"`
	Total       string `json:"total"`
	SlippageBps int    `json:"slippage_bps"`
	TotalBps    int    `json:"total_bps"`
}

type InboundAddress struct {
	Chain         string `json:"chain"`
	Address       string `json:"address"`
	Router        string `json:"router"`
	Halted        bool   `json:"halted"`
	GasRate       string `json:"gas_rate"`
	GasRateUnits  string `json:"gas_rate_units"`
	DustThreshold string `json:"dust_threshold"`
}

type TxStage struct {
	Completed bool `json:"completed"`
}

// TxStatusResponse stages are pointers because thornode omits stages that do
// not apply, e.g. outbound_signed for swaps to RUNE.
type TxStatusResponse struct {
	Stages struct {
		InboundObserved            *TxStage `json:"inbound_observed"`
		InboundConfirmationCounted *TxStage `json:"inbound_confirmation_counted"`
		InboundFinalised           *TxStage `json:"inbound_finalised"`
		SwapStatus                 *struct {
			Pending bool `json:"pending"`
		} `json:"swap_status"`
		SwapFinalised  *TxStage `json:"swap_finalised"`
		OutboundSigned *TxStage `json:"outbound_signed"`
	} `json:"stages"`
	OutTxs []struct {
		Memo string `json:"memo"`
	} `json:"out_txs"`
}

// APIError is a non-200 reply from thornode. Message is the "message" or
// "error" field of the body when present.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// QuoteParams are the inputs of a thornode swap quote. Destination may be
// empty for an indicative quote without memo.
type QuoteParams struct {
	FromAsset    string
	ToAsset      string
	Amount       string // 1e8 precision
	Destination  string
	RefundAddr   string
	ToleranceBps int
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	interval   time.Duration
	mu         sync.Mutex
	lastReq    time.Time
}

// NewClient returns a thornode client. httpClient may come from
// apilog.NewHTTPClient; nil uses a plain client.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = ThornodeBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		interval:   time.Second,
	}
}

// rateLimit enforces one request per interval. It gives up when ctx ends.
func (c *Client) rateLimit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wait := c.interval - time.Since(c.lastReq); wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	c.lastReq = time.Now()
	return nil
}

func (c *Client) GetQuote(ctx context.Context, p QuoteParams) (*QuoteResponse, error) {
	params := url.Values{}
	params.Set("from_asset", p.FromAsset)
	params.Set("to_asset", p.ToAsset)
	params.Set("amount", p.Amount)
	if p.Destination != "" {
		params.Set("destination", p.Destination)
	}
	if p.RefundAddr != "" {
		params.Set("refund_address", p.RefundAddr)
	}
	if p.ToleranceBps > 0 {
		params.Set("tolerance_bps", fmt.Sprintf("%d", p.ToleranceBps))
	}
	params.Set("streaming_interval", "1")
	params.Set("streaming_quantity", "0")

	var quote QuoteResponse
	if err := c.get(ctx, "quote", "/thorchain/quote/swap?"+params.Encode(), &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

func (c *Client) GetInboundAddresses(ctx context.Context) ([]InboundAddress, error) {
	var addrs []InboundAddress
	if err := c.get(ctx, "inbound addresses", "/thorchain/inbound_addresses", &addrs); err != nil {
		return nil, err
	}
	return addrs, nil
}

func (c *Client) GetTxStatus(ctx context.Context, txHash string) (*TxStatusResponse, error) {
	// Strip 0x prefix if present
	hash := strings.TrimPrefix(strings.TrimPrefix(txHash, "0x"), "0X")

	var status TxStatusResponse
	if err := c.get(ctx, "tx status", "/thorchain/tx/status/"+hash, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, out interface{}) error {
	if err := c.rateLimit(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
		var msg struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(body, &msg) == nil {
			apiErr.Message = msg.Message
			if apiErr.Message == "" {
				apiErr.Message = msg.Error
			}
		}
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing %s: %w", endpoint, err)
	}
	return nil
}
