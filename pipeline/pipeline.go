// Package pipeline drives a transaction from construction to a confirmed receipt. Every
// transaction goes through a Run, which signs exactly once and only moves forward.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/airchains-network/txpipe/eth"
	"github.com/airchains-network/txpipe/nonce"
	"github.com/airchains-network/txpipe/txn"
	"github.com/airchains-network/txpipe/types"
)

const (
	DefaultGasLimit       = 21000
	DefaultCallGasLimit   = 200000
	DefaultReceiptTimeout = 30 * time.Second
)

var (
	ErrAlreadySigned     = fmt.Errorf("%w: transaction already signed", types.ErrValidation)
	ErrInvalidTransition = fmt.Errorf("%w: invalid state transition", types.ErrValidation)
	ErrSignerMismatch    = fmt.Errorf("%w: sender is not the signing account", types.ErrInvalidTransactionParameters)
)

// Signer produces signatures for one account. *wallet.AccountKey implements it.
type Signer interface {
	Address() common.Address
	Sign(tx txn.UnsignedTransaction, chainID *big.Int) (txn.Signature, error)
}

// Options are the defaults applied to every transaction of a Pipeline
type Options struct {
	ChainID        *big.Int
	GasLimit       uint64
	CallGasLimit   uint64
	GasPrice       *big.Int
	ReceiptTimeout time.Duration
}

// GasOptions overrides Options for a single transaction. Zero fields keep the defaults.
type GasOptions struct {
	GasLimit uint64
	GasPrice *big.Int
}

// Pipeline builds, signs, submits and confirms transactions
type Pipeline struct {
	client *eth.Client
	nonces *nonce.Sequencer
	opts   Options
	log    *logrus.Logger

	mu        sync.RWMutex
	observers []Observer
}

func New(client *eth.Client, nonces *nonce.Sequencer, opts Options, log *logrus.Logger) *Pipeline {
	if opts.GasLimit == 0 {
		opts.GasLimit = DefaultGasLimit
	}
	if opts.CallGasLimit == 0 {
		opts.CallGasLimit = DefaultCallGasLimit
	}
	if opts.GasPrice == nil {
		opts.GasPrice = big.NewInt(1)
	}
	if opts.ReceiptTimeout == 0 {
		opts.ReceiptTimeout = DefaultReceiptTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{
		client: client,
		nonces: nonces,
		opts:   opts,
		log:    log,
	}
}

// Subscribe registers an observer for all later transitions
func (p *Pipeline) Subscribe(o Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, o)
}

func (p *Pipeline) Client() *eth.Client { return p.client }

func (p *Pipeline) Options() Options { return p.opts }

func (p *Pipeline) emit(e Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, o := range p.observers {
		o.Observe(e)
	}
}

// NewRun snapshots tx for signer. A zero From is filled with the signer's address; any other
// From must match it.
func (p *Pipeline) NewRun(signer Signer, tx txn.UnsignedTransaction) (*Run, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: no signer", types.ErrInvalidTransactionParameters)
	}
	snapshot := tx.Copy()
	if snapshot.From == (common.Address{}) {
		snapshot.From = signer.Address()
	}
	if snapshot.From != signer.Address() {
		return nil, fmt.Errorf("%w: from %s, key %s", ErrSignerMismatch, snapshot.From.Hex(), signer.Address().Hex())
	}
	r := &Run{
		p:      p,
		signer: signer,
		tx:     snapshot,
		state:  StateBuilt,
	}
	p.emit(r.event(StateBuilt, StateBuilt))
	return r, nil
}

// Transfer sends value wei from signer to to and waits for the receipt. The returned Run is
// non-nil whenever a transaction was built, including on failure.
func (p *Pipeline) Transfer(ctx context.Context, signer Signer, to common.Address, value *big.Int, gas GasOptions) (*Run, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: no signer", types.ErrInvalidTransactionParameters)
	}
	req := txn.TransferRequest{
		From:     signer.Address(),
		To:       to,
		Value:    value,
		GasLimit: p.gasLimit(gas, p.opts.GasLimit),
		GasPrice: p.gasPrice(gas),
	}
	if _, err := txn.BuildTransfer(req); err != nil {
		return nil, err
	}
	return p.reserveAndExecute(ctx, signer, func(n uint64) (txn.UnsignedTransaction, error) {
		req.Nonce = n
		return txn.BuildTransfer(req)
	})
}

// ContractCall invokes fn on contract with a state-changing transaction. Encoding errors are
// reported before any network call.
func (p *Pipeline) ContractCall(ctx context.Context, signer Signer, contract common.Address, artifact *types.ContractArtifact, fn string, args []interface{}, gas GasOptions) (*Run, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: no signer", types.ErrInvalidTransactionParameters)
	}
	req := txn.CallRequest{
		From:     signer.Address(),
		Contract: contract,
		Artifact: artifact,
		Function: fn,
		Args:     args,
		GasLimit: p.gasLimit(gas, p.opts.CallGasLimit),
		GasPrice: p.gasPrice(gas),
	}
	if _, err := txn.BuildContractCall(req); err != nil {
		return nil, err
	}
	return p.reserveAndExecute(ctx, signer, func(n uint64) (txn.UnsignedTransaction, error) {
		req.Nonce = n
		return txn.BuildContractCall(req)
	})
}

func (p *Pipeline) reserveAndExecute(ctx context.Context, signer Signer, build func(uint64) (txn.UnsignedTransaction, error)) (*Run, error) {
	from := signer.Address()
	n, err := p.nonces.Reserve(ctx, from)
	if err != nil {
		return nil, err
	}
	tx, err := build(n)
	if err != nil {
		p.nonces.Release(from, n)
		return nil, err
	}
	run, err := p.NewRun(signer, tx)
	if err != nil {
		p.nonces.Release(from, n)
		return nil, err
	}

	_, err = run.Execute(ctx)
	switch {
	case err == nil:
	case errors.Is(err, eth.ErrNonceTooLow):
		p.nonces.Resync(from)
	case run.State() == StateRejected:
		p.nonces.Release(from, n)
	case run.abort(err):
		// aborted before the release so the run cannot be signed with a reissued nonce
		p.nonces.Release(from, n)
	}
	return run, err
}

func (p *Pipeline) gasLimit(gas GasOptions, fallback uint64) uint64 {
	if gas.GasLimit > 0 {
		return gas.GasLimit
	}
	return fallback
}

func (p *Pipeline) gasPrice(gas GasOptions) *big.Int {
	if gas.GasPrice != nil {
		return gas.GasPrice
	}
	return p.opts.GasPrice
}
