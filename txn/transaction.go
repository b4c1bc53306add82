package txn

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/sha3"
)

// Kind tells a plain transfer from a contract call
type Kind int

const (
	KindTransfer Kind = iota
	KindContractCall
)

func (k Kind) String() string {
	if k == KindContractCall {
		return "contract-call"
	}
	return "transfer"
}

// UnsignedTransaction is a legacy transaction before signing. From is informational and
// is not part of the signed payload.
type UnsignedTransaction struct {
	From     common.Address `json:"from"`
	To       common.Address `json:"to"`
	Value    *big.Int       `json:"value"`
	GasLimit uint64         `json:"gas"`
	GasPrice *big.Int       `json:"gasPrice"`
	Nonce    uint64         `json:"nonce"`
	Data     []byte         `json:"data,omitempty"`
}

// Kind reports whether the transaction carries a call payload
func (tx UnsignedTransaction) Kind() Kind {
	if len(tx.Data) > 0 {
		return KindContractCall
	}
	return KindTransfer
}

// Copy returns a deep copy sharing no memory with tx
func (tx UnsignedTransaction) Copy() UnsignedTransaction {
	cpy := tx
	cpy.Value = copyBig(tx.Value)
	cpy.GasPrice = copyBig(tx.GasPrice)
	if tx.Data != nil {
		cpy.Data = bytes.Clone(tx.Data)
	}
	return cpy
}

// SigningPayload is the canonical RLP encoding that gets hashed and signed. A positive
// chainID selects EIP-155 replay protection.
func (tx UnsignedTransaction) SigningPayload(chainID *big.Int) ([]byte, error) {
	fields := []interface{}{
		tx.Nonce,
		bigOrZero(tx.GasPrice),
		tx.GasLimit,
		tx.To,
		bigOrZero(tx.Value),
		tx.Data,
	}
	if hasChainID(chainID) {
		fields = append(fields, chainID, uint(0), uint(0))
	}
	payload, err := rlp.EncodeToBytes(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode signing payload: %w", err)
	}
	return payload, nil
}

// SigningHash is keccak256(SigningPayload(chainID))
func (tx UnsignedTransaction) SigningHash(chainID *big.Int) (common.Hash, error) {
	payload, err := tx.SigningPayload(chainID)
	if err != nil {
		return common.Hash{}, err
	}
	return HashPayload(payload), nil
}

// HashPayload hashes a signing payload with Keccak-256
func HashPayload(payload []byte) common.Hash {
	var h common.Hash
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(payload)
	hasher.Sum(h[:0])
	return h
}

func (tx UnsignedTransaction) legacy() *ethtypes.LegacyTx {
	to := tx.To
	return &ethtypes.LegacyTx{
		Nonce:    tx.Nonce,
		GasPrice: bigOrZero(tx.GasPrice),
		Gas:      tx.GasLimit,
		To:       &to,
		Value:    bigOrZero(tx.Value),
		Data:     bytes.Clone(tx.Data),
	}
}

// Signer returns the go-ethereum signer matching SigningPayload for chainID
func Signer(chainID *big.Int) ethtypes.Signer {
	if hasChainID(chainID) {
		return ethtypes.NewEIP155Signer(chainID)
	}
	return ethtypes.HomesteadSigner{}
}

func hasChainID(chainID *big.Int) bool {
	return chainID != nil && chainID.Sign() > 0
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
