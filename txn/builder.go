package txn

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/airchains-network/txpipe/types"
)

// TransferRequest describes a plain value transfer
type TransferRequest struct {
	From     common.Address
	To       common.Address
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
	Nonce    uint64
}

// CallRequest describes a state-changing contract call
type CallRequest struct {
	From     common.Address
	Contract common.Address
	Artifact *types.ContractArtifact
	Function string
	Args     []interface{}
	GasLimit uint64
	GasPrice *big.Int
	Nonce    uint64
}

// BuildTransfer assembles an unsigned transfer. Zero values and self transfers are allowed.
func BuildTransfer(req TransferRequest) (UnsignedTransaction, error) {
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	if err := checkAmount("value", value); err != nil {
		return UnsignedTransaction{}, err
	}
	if err := checkGas(req.GasLimit, req.GasPrice); err != nil {
		return UnsignedTransaction{}, err
	}
	return UnsignedTransaction{
		From:     req.From,
		To:       req.To,
		Value:    new(big.Int).Set(value),
		GasLimit: req.GasLimit,
		GasPrice: new(big.Int).Set(req.GasPrice),
		Nonce:    req.Nonce,
	}, nil
}

// BuildContractCall encodes the call against the artifact's ABI and assembles an unsigned
// transaction carrying it, with zero value.
func BuildContractCall(req CallRequest) (UnsignedTransaction, error) {
	data, err := EncodeCall(req.Artifact, req.Function, req.Args)
	if err != nil {
		return UnsignedTransaction{}, err
	}
	if err := checkGas(req.GasLimit, req.GasPrice); err != nil {
		return UnsignedTransaction{}, err
	}
	return UnsignedTransaction{
		From:     req.From,
		To:       req.Contract,
		Value:    new(big.Int),
		GasLimit: req.GasLimit,
		GasPrice: new(big.Int).Set(req.GasPrice),
		Nonce:    req.Nonce,
		Data:     data,
	}, nil
}

// EncodeCall returns selector || abi-encoded args for fn
func EncodeCall(artifact *types.ContractArtifact, fn string, args []interface{}) ([]byte, error) {
	if artifact == nil {
		return nil, fmt.Errorf("%w: contract artifact is required", types.ErrInvalidTransactionParameters)
	}
	method, ok := artifact.ABI.Methods[fn]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no function %q", types.ErrUnknownFunction, artifact.Name, fn)
	}
	if len(args) != len(method.Inputs) {
		return nil, fmt.Errorf("%w: %s.%s takes %d arguments, got %d",
			types.ErrArgumentTypeMismatch, artifact.Name, fn, len(method.Inputs), len(args))
	}
	packed, err := method.Inputs.Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %v", types.ErrArgumentTypeMismatch, artifact.Name, fn, err)
	}
	data := make([]byte, 0, len(method.ID)+len(packed))
	data = append(data, method.ID...)
	return append(data, packed...), nil
}

func checkGas(limit uint64, price *big.Int) error {
	if limit == 0 {
		return fmt.Errorf("%w: gas limit must be positive", types.ErrInvalidTransactionParameters)
	}
	if price == nil || price.Sign() <= 0 {
		return fmt.Errorf("%w: gas price must be positive", types.ErrInvalidTransactionParameters)
	}
	return checkAmount("gas price", price)
}

func checkAmount(field string, v *big.Int) error {
	if v.Sign() < 0 {
		return fmt.Errorf("%w: %s must not be negative", types.ErrInvalidTransactionParameters, field)
	}
	if _, overflow := uint256.FromBig(v); overflow {
		return fmt.Errorf("%w: %s exceeds 256 bits", types.ErrInvalidTransactionParameters, field)
	}
	return nil
}
