// Package wallet holds a single in-memory signing key.
package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/airchains-network/txpipe/txn"
	"github.com/airchains-network/txpipe/types"
)

var ErrInvalidKeyMaterial = fmt.Errorf("%w: invalid key material", types.ErrValidation)

// AccountKey is a secp256k1 private key and the address derived from it. The secret is
// read-only after construction and is never rendered by String or GoString.
type AccountKey struct {
	priv    *ecdsa.PrivateKey
	address common.Address
}

// NewAccountKey builds a key from a 32 byte secret
func NewAccountKey(secret []byte) (*AccountKey, error) {
	priv, err := crypto.ToECDSA(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	return fromECDSA(priv), nil
}

// AccountKeyFromHex builds a key from a hex secret, with or without 0x
func AccountKeyFromHex(secret string) (*AccountKey, error) {
	s := strings.TrimSpace(secret)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	priv, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	return fromECDSA(priv), nil
}

// GenerateAccountKey creates a fresh random key
func GenerateAccountKey() (*AccountKey, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return fromECDSA(priv), nil
}

func fromECDSA(priv *ecdsa.PrivateKey) *AccountKey {
	return &AccountKey{
		priv:    priv,
		address: crypto.PubkeyToAddress(priv.PublicKey),
	}
}

// Address is the account derived from the public key
func (k *AccountKey) Address() common.Address {
	if k == nil {
		return common.Address{}
	}
	return k.address
}

// Sign signs the canonical payload of tx for chainID. tx is taken by value and copied, so the
// caller's transaction is never touched.
func (k *AccountKey) Sign(tx txn.UnsignedTransaction, chainID *big.Int) (txn.Signature, error) {
	if k == nil || k.priv == nil {
		return txn.Signature{}, fmt.Errorf("%w: no private key loaded", ErrInvalidKeyMaterial)
	}
	payload, err := tx.Copy().SigningPayload(chainID)
	if err != nil {
		return txn.Signature{}, err
	}
	hash := txn.HashPayload(payload)
	raw, err := crypto.Sign(hash[:], k.priv)
	if err != nil {
		return txn.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return txn.SignatureFromBytes(raw, hash)
}

// Verify reports whether sig over payload was produced by addr
func Verify(addr common.Address, payload []byte, sig txn.Signature) bool {
	hash := txn.HashPayload(payload)
	if hash != sig.Hash {
		return false
	}
	pub, err := crypto.SigToPub(hash[:], sig.Bytes())
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pub) == addr
}

func (k *AccountKey) String() string {
	return k.Address().Hex()
}

func (k *AccountKey) GoString() string {
	return fmt.Sprintf("wallet.AccountKey{address: %s}", k.Address().Hex())
}
