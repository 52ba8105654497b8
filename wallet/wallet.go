package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// DeriveKey derives an ECDSA private key from a mnemonic at the given account index.
// Path: m/44'/60'/0'/0/{index}
func DeriveKey(mnemonic string, index uint32) (*ecdsa.PrivateKey, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed := bip39.NewSeed(mnemonic, "")

	masterKey, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("creating master key: %w", err)
	}

	path := []uint32{
		bip32.FirstHardenedChild + 44, // purpose
		bip32.FirstHardenedChild + 60, // coin type
		bip32.FirstHardenedChild + 0,  // account
		0,                             // change
		index,
	}

	key := masterKey
	for depth, child := range path {
		key, err = key.NewChildKey(child)
		if err != nil {
			return nil, fmt.Errorf("deriving level %d: %w", depth+1, err)
		}
	}

	privateKey, err := crypto.ToECDSA(key.Key)
	if err != nil {
		return nil, fmt.Errorf("converting to ECDSA: %w", err)
	}

	return privateKey, nil
}

// DeriveAddress derives an Ethereum address from a mnemonic at the given account index.
func DeriveAddress(mnemonic string, index uint32) (common.Address, error) {
	key, err := DeriveKey(mnemonic, index)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// NewMnemonic generates a fresh 24-word mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", fmt.Errorf("generating entropy: %w", err)
	}
	return bip39.NewMnemonic(entropy)
}
