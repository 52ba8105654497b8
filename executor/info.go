package executor

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/RaghavSood/ccrouter/swaps"
)

// Info is the read-only projection of a trade shown before confirmation and
// stored alongside recent trades.
type Info struct {
	Provider          string
	AmountIn          decimal.Decimal
	AmountOut         decimal.Decimal
	MinimumReceived   decimal.Decimal
	Rate              decimal.Decimal // output per unit of input
	EstimatedDuration time.Duration
	Route             []string

	// BridgeType and ExternalID are recorded with the trade for status lookup.
	BridgeType string
	ExternalID string

	Fields map[string]string
}

// TradeInfo builds the info projection. It fails only for trade shapes it
// does not know, in which case the returned Info still carries the amounts
// and route.
func TradeInfo(trade swaps.Trade) (Info, error) {
	info := Info{
		Provider:          trade.Provider.DisplayName(),
		AmountIn:          trade.From.FromRaw(trade.AmountIn),
		AmountOut:         trade.To.FromRaw(trade.AmountOut),
		MinimumReceived:   trade.To.FromRaw(trade.AmountOutMin),
		EstimatedDuration: trade.EstimatedDuration,
		Route:             trade.PathSymbols(),
		Fields:            map[string]string{},
	}
	if info.AmountIn.IsPositive() {
		info.Rate = info.AmountOut.Div(info.AmountIn)
	}

	switch d := trade.Details.(type) {
	case swaps.ThorchainDetails:
		info.BridgeType = string(swaps.ProviderThorchain)
		info.Fields["memo"] = d.Memo
		info.Fields["router"] = d.Router.Hex()
		info.Fields["vault"] = d.Vault.Hex()
		info.Fields["expiry"] = strconv.FormatInt(d.Expiry, 10)
		if d.Fees != "" {
			info.Fields["fees"] = d.Fees
		}
		if d.Warning != "" {
			info.Fields["warning"] = d.Warning
		}
	case swaps.NearIntentsDetails:
		info.BridgeType = string(swaps.ProviderNearIntents)
		info.ExternalID = d.DepositAddress
		info.Fields["deposit_address"] = d.DepositAddress
		info.Fields["correlation_id"] = d.CorrelationID
		if !d.Deadline.IsZero() {
			info.Fields["deadline"] = d.Deadline.UTC().Format(time.RFC3339)
		}
	case swaps.SimpleSwapDetails:
		info.ExternalID = d.ExchangeID
		info.Fields["exchange_id"] = d.ExchangeID
		info.Fields["deposit_address"] = d.DepositAddress
	case swaps.HoudiniDetails:
		info.ExternalID = d.HoudiniID
		info.Fields["houdini_id"] = d.HoudiniID
		info.Fields["deposit_address"] = d.DepositAddress
		info.Fields["anonymous"] = strconv.FormatBool(d.Anonymous)
	case swaps.CowSwapDetails:
		uid := "0x" + hex.EncodeToString(d.OrderUID)
		if len(d.OrderUID) > 0 {
			info.ExternalID = uid
			info.Fields["order_uid"] = uid
		}
		info.Fields["valid_to"] = time.Unix(int64(d.ValidTo), 0).UTC().Format(time.RFC3339)
		if d.FeeAmount != nil {
			info.Fields["fee_amount"] = d.FeeAmount.String()
		}
	default:
		return info, &swaps.UnknownTradeShapeError{Provider: trade.Provider, Shape: fmt.Sprintf("%T", trade.Details)}
	}
	return info, nil
}
