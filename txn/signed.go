package txn

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// SignedTransaction is a transaction together with its signature in wire form. It has no
// mutators; accessors hand out copies.
type SignedTransaction struct {
	tx      UnsignedTransaction
	sig     Signature
	chainID *big.Int
	raw     []byte
	hash    common.Hash
}

// Assemble binds sig to tx and produces the canonical wire encoding. It fails with
// ErrSignatureMismatch when sig was produced over a different payload.
func Assemble(tx UnsignedTransaction, sig Signature, chainID *big.Int) (*SignedTransaction, error) {
	snapshot := tx.Copy()
	hash, err := snapshot.SigningHash(chainID)
	if err != nil {
		return nil, err
	}
	if hash != sig.Hash {
		return nil, fmt.Errorf("%w: signed %s, transaction hashes to %s", ErrSignatureMismatch, sig.Hash.Hex(), hash.Hex())
	}

	ethTx, err := ethtypes.NewTx(snapshot.legacy()).WithSignature(Signer(chainID), sig.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to attach signature: %w", err)
	}
	raw, err := ethTx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode signed transaction: %w", err)
	}

	return &SignedTransaction{
		tx:      snapshot,
		sig:     sig,
		chainID: copyBig(chainID),
		raw:     raw,
		hash:    ethTx.Hash(),
	}, nil
}

// Hash is the transaction hash the network will report
func (s *SignedTransaction) Hash() common.Hash { return s.hash }

// Raw returns the wire bytes for eth_sendRawTransaction
func (s *SignedTransaction) Raw() []byte { return bytes.Clone(s.raw) }

// RawHex returns Raw as 0x-prefixed hex
func (s *SignedTransaction) RawHex() string { return hexutil.Encode(s.raw) }

// Signature returns the signature the transaction was assembled with
func (s *SignedTransaction) Signature() Signature { return s.sig }

// Transaction returns a copy of the signed fields
func (s *SignedTransaction) Transaction() UnsignedTransaction { return s.tx.Copy() }

func (s *SignedTransaction) Nonce() uint64 { return s.tx.Nonce }

func (s *SignedTransaction) From() common.Address { return s.tx.From }

func (s *SignedTransaction) To() common.Address { return s.tx.To }

// Sender recovers the signing address from the wire encoding
func (s *SignedTransaction) Sender() (common.Address, error) {
	var tx ethtypes.Transaction
	if err := tx.UnmarshalBinary(s.raw); err != nil {
		return common.Address{}, fmt.Errorf("failed to decode signed transaction: %w", err)
	}
	return ethtypes.Sender(Signer(s.chainID), &tx)
}
