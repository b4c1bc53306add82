package eth

//go:generate mockgen -package=mocks -destination=./mocks/transport.go -source=./transport.go

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/airchains-network/txpipe/types"
)

var (
	ErrSubmissionRejected     = fmt.Errorf("%w: submission rejected", types.ErrRejected)
	ErrNonceTooLow            = fmt.Errorf("%w: nonce too low", ErrSubmissionRejected)
	ErrReceiptTimeout         = fmt.Errorf("%w: receipt not observed", types.ErrTimeout)
	ErrTransactionReverted    = fmt.Errorf("%w: transaction reverted", types.ErrReverted)
	ErrCallReverted           = fmt.Errorf("%w: call reverted", types.ErrReverted)
	ErrNodeSigningUnsupported = fmt.Errorf("%w: transport does not sign transactions", types.ErrValidation)
)

// Transport is the set of node primitives the pipeline needs. Implementations report a
// receipt that is not available yet with ethereum.NotFound, a node refusing a transaction
// with RejectionError, and a failed eth_call with *RevertError.
type Transport interface {
	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)
	TransactionCount(ctx context.Context, addr common.Address) (uint64, error)
	SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	Call(ctx context.Context, msg CallMsg) ([]byte, error)
}

// NodeSigner is implemented by transports whose node holds unlocked accounts
type NodeSigner interface {
	SendTransaction(ctx context.Context, args TxArgs) (common.Hash, error)
}

// CallMsg is a read-only contract call against latest state
type CallMsg struct {
	From common.Address
	To   common.Address
	Data []byte
}

// TxArgs is a transaction for the node to fill in, sign and submit
type TxArgs struct {
	From     common.Address
	To       *common.Address
	Value    *big.Int
	Gas      uint64
	GasPrice *big.Int
	Nonce    *uint64
	Data     []byte
}

// RejectionError builds the error a transport returns when the node refuses a transaction
func RejectionError(reason string) error {
	if strings.Contains(strings.ToLower(reason), "nonce too low") {
		return fmt.Errorf("%w: %s", ErrNonceTooLow, reason)
	}
	return fmt.Errorf("%w: %s", ErrSubmissionRejected, reason)
}

// IsAlreadyKnown reports whether a node refusal means the identical transaction is already pooled
func IsAlreadyKnown(reason string) bool {
	reason = strings.ToLower(reason)
	return strings.Contains(reason, "already known") || strings.Contains(reason, "known transaction")
}

// RevertError is a simulated call that failed
type RevertError struct {
	Reason string
	Data   []byte
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return ErrCallReverted.Error()
	}
	return fmt.Sprintf("%s: %s", ErrCallReverted.Error(), e.Reason)
}

func (e *RevertError) Unwrap() error { return ErrCallReverted }
