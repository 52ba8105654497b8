package cowswap

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/RaghavSood/ccrouter/contracts"
)

// Order is a GPv2 order as quoted and submitted. Amounts are decimal strings.
type Order struct {
	SellToken         string `json:"sellToken"`
	BuyToken          string `json:"buyToken"`
	Receiver          string `json:"receiver"`
	SellAmount        string `json:"sellAmount"`
	BuyAmount         string `json:"buyAmount"`
	ValidTo           uint32 `json:"validTo"`
	AppData           string `json:"appData"`
	AppDataHash       string `json:"appDataHash,omitempty"`
	FeeAmount         string `json:"feeAmount"`
	Kind              string `json:"kind"`
	PartiallyFillable bool   `json:"partiallyFillable"`
	SellTokenBalance  string `json:"sellTokenBalance"`
	BuyTokenBalance   string `json:"buyTokenBalance"`
}

// Digest returns the EIP-712 hash of the order under the settlement domain.
func (o Order) Digest(chainID int64) (common.Hash, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": {
				{Name: "sellToken", Type: "address"},
				{Name: "buyToken", Type: "address"},
				{Name: "receiver", Type: "address"},
				{Name: "sellAmount", Type: "uint256"},
				{Name: "buyAmount", Type: "uint256"},
				{Name: "validTo", Type: "uint32"},
				{Name: "appData", Type: "bytes32"},
				{Name: "feeAmount", Type: "uint256"},
				{Name: "kind", Type: "string"},
				{Name: "partiallyFillable", Type: "bool"},
				{Name: "sellTokenBalance", Type: "string"},
				{Name: "buyTokenBalance", Type: "string"},
			},
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              "Gnosis Protocol",
			Version:           "v2",
			ChainId:           math.NewHexOrDecimal256(chainID),
			VerifyingContract: contracts.CowSettlement.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"sellToken":         o.SellToken,
			"buyToken":          o.BuyToken,
			"receiver":          o.Receiver,
			"sellAmount":        o.SellAmount,
			"buyAmount":         o.BuyAmount,
			"validTo":           fmt.Sprintf("%d", o.ValidTo),
			"appData":           o.appDataHash(),
			"feeAmount":         o.FeeAmount,
			"kind":              o.Kind,
			"partiallyFillable": o.PartiallyFillable,
			"sellTokenBalance":  o.SellTokenBalance,
			"buyTokenBalance":   o.BuyTokenBalance,
		},
	}

	domainSep, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("hashing domain: %w", err)
	}

	msgHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("hashing message: %w", err)
	}

	rawData := fmt.Sprintf("\x19\x01%s%s", string(domainSep), string(msgHash))
	return crypto.Keccak256Hash([]byte(rawData)), nil
}

// UID is digest ‖ owner ‖ validTo (56 bytes).
func (o Order) UID(chainID int64, owner common.Address) ([]byte, error) {
	digest, err := o.Digest(chainID)
	if err != nil {
		return nil, err
	}
	uid := make([]byte, 0, 56)
	uid = append(uid, digest.Bytes()...)
	uid = append(uid, owner.Bytes()...)
	uid = binary.BigEndian.AppendUint32(uid, o.ValidTo)
	return uid, nil
}

func (o Order) appDataHash() string {
	if o.AppDataHash != "" {
		return o.AppDataHash
	}
	if len(o.AppData) == 66 {
		return o.AppData
	}
	return appDataHash
}
