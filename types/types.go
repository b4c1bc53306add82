package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ReceiptStatus is the execution outcome recorded in a receipt
type ReceiptStatus uint64

const (
	ReceiptStatusFailed     ReceiptStatus = 0
	ReceiptStatusSuccessful ReceiptStatus = 1
)

func (s ReceiptStatus) String() string {
	if s == ReceiptStatusSuccessful {
		return "success"
	}
	return "failure"
}

// Receipt is the network's record of an included transaction
type Receipt struct {
	TxHash            common.Hash   `json:"transactionHash"`
	Status            ReceiptStatus `json:"status"`
	GasUsed           uint64        `json:"gasUsed"`
	BlockNumber       uint64        `json:"blockNumber"`
	EffectiveGasPrice *big.Int      `json:"effectiveGasPrice,omitempty"`
}

// Succeeded reports whether the transaction executed without reverting
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == ReceiptStatusSuccessful
}

// Fee returns gasUsed * effectiveGasPrice, or nil when the price is unknown
func (r *Receipt) Fee() *big.Int {
	if r == nil || r.EffectiveGasPrice == nil {
		return nil
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(r.GasUsed), r.EffectiveGasPrice)
}

// EVMAccount represents an Ethereum account
type EVMAccount struct {
	Balance *big.Int `json:"balance"`
	Nonce   uint64   `json:"nonce"`
	Code    []byte   `json:"code,omitempty"`
}
