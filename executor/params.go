package executor

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/RaghavSood/ccrouter/contracts"
	"github.com/RaghavSood/ccrouter/swaps"
)

// NativeValue is the native amount attached to the source transaction:
// the provider's crypto fee plus the input amount when it is the gas token.
func NativeValue(trade swaps.Trade) *big.Int {
	v := new(big.Int)
	if trade.CryptoFee != nil {
		v.Add(v, trade.CryptoFee)
	}
	if trade.From.IsNative() && trade.AmountIn != nil {
		v.Add(v, trade.AmountIn)
	}
	return v
}

// BuildCallParams resolves the source transaction for trade. It performs no
// I/O; trades that need a deposit address or order must be prepared first.
func BuildCallParams(trade swaps.Trade, wallet, target string) (ContractCall, error) {
	if !trade.From.Blockchain.IsEVM() {
		return ContractCall{}, fmt.Errorf("source chain %s is not EVM", trade.From.Blockchain)
	}
	if !common.IsHexAddress(wallet) {
		return ContractCall{}, fmt.Errorf("wallet %q is not an EVM address", wallet)
	}
	if trade.AmountIn == nil || trade.AmountIn.Sign() <= 0 {
		return ContractCall{}, fmt.Errorf("trade has no input amount")
	}
	if !trade.From.IsNative() && !common.IsHexAddress(trade.From.Address) {
		return ContractCall{}, fmt.Errorf("source token %s has no contract address", trade.From.Key())
	}

	call := ContractCall{
		Chain: trade.From.Blockchain,
		From:  common.HexToAddress(wallet),
		Value: NativeValue(trade),
	}

	var asset common.Address
	if !trade.From.IsNative() {
		asset = trade.From.EVMAddress()
	}

	switch d := trade.Details.(type) {
	case swaps.ThorchainDetails:
		if d.Memo == "" {
			return ContractCall{}, fmt.Errorf("thorchain trade has no memo")
		}
		if d.Router == (common.Address{}) || d.Vault == (common.Address{}) {
			return ContractCall{}, fmt.Errorf("thorchain trade has no router or vault")
		}
		call.To = d.Router
		call.ABI = contracts.RouterABI
		call.Method = "depositWithExpiry"
		call.Args = []interface{}{d.Vault, asset, trade.AmountIn, d.Memo, big.NewInt(d.Expiry)}
		return call, nil

	case swaps.NearIntentsDetails:
		return depositCall(call, trade, d.DepositAddress)

	case swaps.SimpleSwapDetails:
		return depositCall(call, trade, d.DepositAddress)

	case swaps.HoudiniDetails:
		return depositCall(call, trade, d.DepositAddress)

	case swaps.CowSwapDetails:
		if len(d.OrderUID) == 0 {
			return ContractCall{}, fmt.Errorf("cowswap order has not been posted")
		}
		call.To = contracts.CowSettlement
		call.ABI = contracts.SettlementABI
		call.Method = "setPreSignature"
		call.Args = []interface{}{d.OrderUID, true}
		return call, nil
	}

	return ContractCall{}, &swaps.UnknownTradeShapeError{Provider: trade.Provider, Shape: fmt.Sprintf("%T", trade.Details)}
}

// depositCall sends the input to a provider-owned deposit address, either as
// a native transfer or as an ERC-20 transfer.
func depositCall(call ContractCall, trade swaps.Trade, deposit string) (ContractCall, error) {
	if deposit == "" {
		return ContractCall{}, fmt.Errorf("%s trade has no deposit address", trade.Provider)
	}
	if !common.IsHexAddress(deposit) {
		return ContractCall{}, fmt.Errorf("%s deposit address %q is not an EVM address", trade.Provider, deposit)
	}
	to := common.HexToAddress(deposit)

	if trade.From.IsNative() {
		call.To = to
		return call, nil
	}
	call.To = trade.From.EVMAddress()
	call.ABI = contracts.ERC20ABI
	call.Method = "transfer"
	call.Args = []interface{}{to, trade.AmountIn}
	return call, nil
}

// ApprovalTarget returns the contract that must be allowed to pull the
// input token. needed is false for native inputs and for providers that are
// paid by direct transfer.
func ApprovalTarget(trade swaps.Trade) (spender common.Address, needed bool, err error) {
	switch d := trade.Details.(type) {
	case swaps.ThorchainDetails:
		if trade.From.IsNative() {
			return common.Address{}, false, nil
		}
		return d.Router, true, nil
	case swaps.CowSwapDetails:
		return contracts.CowVaultRelayer, true, nil
	case swaps.NearIntentsDetails, swaps.SimpleSwapDetails, swaps.HoudiniDetails:
		return common.Address{}, false, nil
	}
	return common.Address{}, false, &swaps.UnknownTradeShapeError{Provider: trade.Provider, Shape: fmt.Sprintf("%T", trade.Details)}
}
