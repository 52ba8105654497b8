package cowswap

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/RaghavSood/ccrouter/swaps"
)

// estimatedDuration covers a few batch auctions.
const estimatedDuration = 2 * time.Minute

// Provider quotes same-chain ERC-20 sells. Execution is a setPreSignature
// call on the settlement contract, so the sell token must be approved to the
// vault relayer.
type Provider struct {
	client *Client
	logger *logrus.Entry
}

func NewProvider(client *Client, logger *logrus.Logger) *Provider {
	return &Provider{
		client: client,
		logger: logger.WithField("pkg", "cowswap.Provider"),
	}
}

func (p *Provider) Type() swaps.ProviderType {
	return swaps.ProviderCowSwap
}

func (p *Provider) SupportsPair(from, to swaps.Blockchain) bool {
	_, ok := networks[from]
	return ok && from == to
}

func (p *Provider) Calculate(ctx context.Context, req swaps.Request) (swaps.Trade, error) {
	if err := p.checkTokens(req.From, req.To); err != nil {
		return swaps.Trade{}, err
	}

	from := common.Address{}
	if common.IsHexAddress(req.Sender) {
		from = common.HexToAddress(req.Sender)
	}
	receiver := from
	if common.IsHexAddress(req.Receiver) {
		receiver = common.HexToAddress(req.Receiver)
	}

	amountIn := req.From.ToRaw(req.FromAmount)
	qr, err := p.client.GetQuote(ctx, req.From.Blockchain, QuoteRequest{
		SellToken:           req.From.EVMAddress().Hex(),
		BuyToken:            buyToken(req.To),
		Receiver:            receiver.Hex(),
		SellAmountBeforeFee: amountIn.String(),
		From:                from.Hex(),
	})
	if err != nil {
		return swaps.Trade{}, classify(err)
	}

	out, ok := new(big.Int).SetString(qr.Quote.BuyAmount, 10)
	if !ok || out.Sign() <= 0 {
		return swaps.Trade{}, swaps.NewProviderError(swaps.ProviderCowSwap, swaps.KindNoRoute, "quote has no buy amount")
	}
	fee, _ := new(big.Int).SetString(qr.Quote.FeeAmount, 10)

	return swaps.Trade{
		Provider:          swaps.ProviderCowSwap,
		From:              req.From,
		To:                req.To,
		AmountIn:          amountIn,
		AmountOut:         out,
		AmountOutMin:      swaps.MinimumOut(out, req.SlippageBps()),
		CryptoFee:         new(big.Int),
		EstimatedDuration: estimatedDuration,
		Details: swaps.CowSwapDetails{
			SellToken: req.From.EVMAddress(),
			BuyToken:  common.HexToAddress(buyToken(req.To)),
			FeeAmount: fee,
			ValidTo:   qr.Quote.ValidTo,
		},
	}, nil
}

// Prepare re-quotes for the executing wallet and posts a presign order whose
// buy amount is the slippage floor. The order UID is checked against the one
// derived locally before it is stored.
func (p *Provider) Prepare(ctx context.Context, trade swaps.Trade, wallet, target string) (swaps.Trade, error) {
	d, ok := trade.Details.(swaps.CowSwapDetails)
	if !ok {
		return swaps.Trade{}, fmt.Errorf("cowswap cannot prepare %T", trade.Details)
	}
	if !common.IsHexAddress(wallet) {
		return swaps.Trade{}, fmt.Errorf("cowswap needs an EVM wallet, got %q", wallet)
	}
	owner := common.HexToAddress(wallet)
	receiver := owner
	if common.IsHexAddress(target) {
		receiver = common.HexToAddress(target)
	}

	chain := trade.From.Blockchain
	qr, err := p.client.GetQuote(ctx, chain, QuoteRequest{
		SellToken:           d.SellToken.Hex(),
		BuyToken:            d.BuyToken.Hex(),
		Receiver:            receiver.Hex(),
		SellAmountBeforeFee: trade.AmountIn.String(),
		From:                owner.Hex(),
	})
	if err != nil {
		return swaps.Trade{}, classify(err)
	}

	out, ok := new(big.Int).SetString(qr.Quote.BuyAmount, 10)
	if !ok {
		return swaps.Trade{}, fmt.Errorf("cowswap quote has invalid buy amount %q", qr.Quote.BuyAmount)
	}
	if trade.AmountOutMin != nil && out.Cmp(trade.AmountOutMin) < 0 {
		return swaps.Trade{}, swaps.NewProviderError(swaps.ProviderCowSwap, swaps.KindLowSlippage,
			"new quote %s is below the minimum %s", out, trade.AmountOutMin)
	}

	order := qr.Quote
	order.BuyAmount = swaps.MinimumOut(out, swaps.ToleranceBps(trade.AmountOut, trade.AmountOutMin)).String()
	if order.AppDataHash == "" {
		order.AppDataHash = appDataHash
	}

	expected, err := order.UID(chain.ChainID().Int64(), owner)
	if err != nil {
		return swaps.Trade{}, fmt.Errorf("computing order uid: %w", err)
	}

	uid, err := p.client.SubmitOrder(ctx, chain, order, owner.Hex(), qr.ID)
	if err != nil {
		return swaps.Trade{}, fmt.Errorf("cowswap submit order: %w", err)
	}
	got, err := hex.DecodeString(strings.TrimPrefix(uid, "0x"))
	if err != nil || !bytes.Equal(got, expected) {
		return swaps.Trade{}, fmt.Errorf("cowswap returned order uid %s, expected 0x%x", uid, expected)
	}

	p.logger.WithFields(logrus.Fields{
		"order_uid":  uid,
		"owner":      owner.Hex(),
		"buy_amount": order.BuyAmount,
		"valid_to":   order.ValidTo,
	}).Info("Presign order posted")

	fee, _ := new(big.Int).SetString(order.FeeAmount, 10)
	d.OrderUID = got
	d.ValidTo = order.ValidTo
	d.FeeAmount = fee
	trade.Details = d
	trade.AmountOut = out
	return trade, nil
}

// CheckStatus looks up the order on every supported network; the UID alone
// does not say which chain it lives on.
func (p *Provider) CheckStatus(ctx context.Context, txHash string, externalID string) (swaps.TradeStatus, error) {
	if externalID == "" {
		return swaps.TradeStatusPending, nil
	}

	var lastErr error
	for _, chain := range swaps.EVMChains() {
		if _, ok := networks[chain]; !ok {
			continue
		}
		order, err := p.client.GetOrder(ctx, chain, externalID)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
				continue
			}
			lastErr = err
			continue
		}
		return orderStatus(order.Status), nil
	}
	if lastErr != nil {
		return swaps.TradeStatusUnknown, fmt.Errorf("cowswap order status: %w", lastErr)
	}
	return swaps.TradeStatusPending, nil
}

func orderStatus(s string) swaps.TradeStatus {
	switch s {
	case "fulfilled":
		return swaps.TradeStatusSuccess
	case "cancelled", "expired":
		return swaps.TradeStatusFail
	default:
		// presignaturePending, open
		return swaps.TradeStatusPending
	}
}

func (p *Provider) checkTokens(from, to swaps.Token) error {
	if !p.SupportsPair(from.Blockchain, to.Blockchain) {
		return swaps.NewProviderError(swaps.ProviderCowSwap, swaps.KindUnsupportedPair,
			"cowswap only swaps on one chain, got %s to %s", from.Blockchain, to.Blockchain)
	}
	if from.IsNative() {
		return swaps.NewProviderError(swaps.ProviderCowSwap, swaps.KindUnsupportedPair, "cowswap cannot sell native %s", from.Symbol)
	}
	if from.Equal(to) {
		return swaps.NewProviderError(swaps.ProviderCowSwap, swaps.KindUnsupportedPair, "sell and buy token are the same")
	}
	return nil
}

func buyToken(t swaps.Token) string {
	if t.IsNative() {
		return swaps.NativeTokenAddress
	}
	return t.EVMAddress().Hex()
}

func classify(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return swaps.AsProviderError(swaps.ProviderCowSwap, err)
	}
	if apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests {
		return &swaps.ProviderError{Provider: swaps.ProviderCowSwap, Kind: swaps.KindUnavailable, Message: apiErr.Body, Err: err}
	}
	kind := swaps.KindNoRoute
	switch apiErr.ErrorType {
	case "NoLiquidity", "SellAmountDoesNotCoverFee", "InsufficientLiquidity":
		kind = swaps.KindLowLiquidity
	case "UnsupportedToken", "UnsupportedBuyTokenDestination", "UnsupportedSellTokenSource":
		kind = swaps.KindUnsupportedPair
	}
	msg := apiErr.Description
	if msg == "" {
		msg = apiErr.Body
	}
	return &swaps.ProviderError{Provider: swaps.ProviderCowSwap, Kind: kind, Message: msg, Err: err}
}
