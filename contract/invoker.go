// Package contract calls functions of deployed contracts, either as read-only calls or as
// transactions driven through the pipeline.
package contract

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/airchains-network/txpipe/eth"
	"github.com/airchains-network/txpipe/pipeline"
	"github.com/airchains-network/txpipe/txn"
	"github.com/airchains-network/txpipe/types"
)

// Contract is a deployed instance of an artifact
type Contract struct {
	Address  common.Address
	Artifact *types.ContractArtifact
}

func (c Contract) String() string {
	if c.Artifact == nil {
		return c.Address.Hex()
	}
	return fmt.Sprintf("%s@%s", c.Artifact.Name, c.Address.Hex())
}

type Invoker struct {
	pipe *pipeline.Pipeline
}

func NewInvoker(pipe *pipeline.Pipeline) *Invoker {
	return &Invoker{pipe: pipe}
}

// Call runs fn against the latest state without creating a transaction and returns its
// decoded outputs
func (i *Invoker) Call(ctx context.Context, c Contract, fn string, args ...interface{}) ([]interface{}, error) {
	return i.CallFrom(ctx, common.Address{}, c, fn, args...)
}

// CallFrom is Call with msg.sender set to from
func (i *Invoker) CallFrom(ctx context.Context, from common.Address, c Contract, fn string, args ...interface{}) ([]interface{}, error) {
	data, err := txn.EncodeCall(c.Artifact, fn, args)
	if err != nil {
		return nil, err
	}
	out, err := i.pipe.Client().Call(ctx, eth.CallMsg{From: from, To: c.Address, Data: data})
	if err != nil {
		return nil, err
	}
	method := c.Artifact.ABI.Methods[fn]
	if len(method.Outputs) == 0 {
		return nil, nil
	}
	values, err := method.Outputs.Unpack(out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode result of %s.%s: %w", c.Artifact.Name, fn, err)
	}
	return values, nil
}

// Invoke sends fn as a transaction signed by signer and waits for its receipt. A reverted
// transaction returns its receipt together with the error.
func (i *Invoker) Invoke(ctx context.Context, c Contract, fn string, args []interface{}, signer pipeline.Signer, gas pipeline.GasOptions) (*types.Receipt, error) {
	run, err := i.pipe.ContractCall(ctx, signer, c.Address, c.Artifact, fn, args, gas)
	if run == nil {
		return nil, err
	}
	return run.Receipt(), err
}
