package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/airchains-network/txpipe/eth"
	"github.com/airchains-network/txpipe/txn"
	"github.com/airchains-network/txpipe/types"
)

// Run is one transaction moving through the pipeline. It is safe for concurrent use.
type Run struct {
	p      *Pipeline
	signer Signer

	mu      sync.Mutex
	tx      txn.UnsignedTransaction
	state   State
	signed  *txn.SignedTransaction
	handle  eth.PendingHandle
	receipt *types.Receipt
	err     error
}

func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Transaction returns a copy of the snapshot being processed
func (r *Run) Transaction() txn.UnsignedTransaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tx.Copy()
}

// Signed is nil until the run is signed
func (r *Run) Signed() *txn.SignedTransaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.signed
}

// Hash is zero until the run is signed
func (r *Run) Hash() common.Hash {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.signed == nil {
		return common.Hash{}
	}
	return r.signed.Hash()
}

func (r *Run) Receipt() *types.Receipt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.receipt
}

// Err is the error that put the run in its current state, if any
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Sign signs the snapshot. A failure leaves the run Built.
func (r *Run) Sign() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.signed != nil {
		return fmt.Errorf("%w: %s", ErrAlreadySigned, r.signed.Hash().Hex())
	}
	if r.state != StateBuilt {
		return r.invalid(StateSigned)
	}

	chainID := r.p.opts.ChainID
	sig, err := r.signer.Sign(r.tx, chainID)
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	signed, err := txn.Assemble(r.tx, sig, chainID)
	if err != nil {
		return fmt.Errorf("failed to assemble transaction: %w", err)
	}
	r.signed = signed
	r.moveTo(StateSigned, nil)
	return nil
}

// Submit hands the signed bytes to the node. A refusal makes the run Rejected. A transport
// failure leaves it Signed, since the node may or may not have received the bytes;
// submitting the same bytes again is safe.
func (r *Run) Submit(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateSigned {
		defer r.mu.Unlock()
		return r.invalid(StateSubmitted)
	}
	raw := r.signed.Raw()
	r.mu.Unlock()

	handle, err := r.p.client.SubmitSigned(ctx, raw)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateSigned {
		return r.invalid(StateSubmitted)
	}
	if err != nil {
		if errors.Is(err, types.ErrRejected) {
			r.moveTo(StateRejected, err)
		}
		return err
	}
	r.handle = handle
	r.moveTo(StateSubmitted, nil)
	return nil
}

// Await waits up to timeout for the receipt. It may be called again after TimedOut.
// Cancelling ctx stops waiting without changing the state.
func (r *Run) Await(ctx context.Context, timeout time.Duration) (*types.Receipt, error) {
	r.mu.Lock()
	if r.state != StateSubmitted && r.state != StateTimedOut {
		defer r.mu.Unlock()
		return nil, r.invalid(StateConfirmed)
	}
	handle := r.handle
	r.mu.Unlock()

	receipt, err := r.p.client.AwaitReceipt(ctx, handle, timeout)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Final() {
		return r.receipt, r.err
	}
	switch {
	case err == nil:
		r.receipt = receipt
		r.moveTo(StateConfirmed, nil)
	case errors.Is(err, eth.ErrTransactionReverted):
		r.receipt = receipt
		r.moveTo(StateReverted, err)
	case errors.Is(err, eth.ErrReceiptTimeout):
		r.moveTo(StateTimedOut, err)
	}
	return receipt, err
}

// Execute performs every remaining step with the pipeline's receipt timeout
func (r *Run) Execute(ctx context.Context) (*types.Receipt, error) {
	if r.State() == StateBuilt {
		if err := r.Sign(); err != nil {
			return nil, err
		}
	}
	if r.State() == StateSigned {
		if err := r.Submit(ctx); err != nil {
			return nil, err
		}
	}
	return r.Await(ctx, r.p.opts.ReceiptTimeout)
}

// abort ends a run that never left Built, so its nonce can be handed out again
func (r *Run) abort(err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateBuilt {
		return false
	}
	r.moveTo(StateAborted, err)
	return true
}

func (r *Run) invalid(to State) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.state, to)
}

// moveTo changes state and notifies observers. Caller holds r.mu, so observers must not
// call back into the Run.
func (r *Run) moveTo(to State, err error) {
	prev := r.state
	r.state = to
	r.err = err
	r.p.emit(r.event(prev, to))
}

func (r *Run) event(prev, to State) Event {
	e := Event{
		From:     r.tx.From,
		To:       r.tx.To,
		Nonce:    r.tx.Nonce,
		Kind:     r.tx.Kind(),
		Value:    copyValue(r.tx.Value),
		Previous: prev,
		State:    to,
		Receipt:  r.receipt,
		Err:      r.err,
		At:       time.Now(),
	}
	if r.signed != nil {
		e.Hash = r.signed.Hash()
	}
	return e
}

func copyValue(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
