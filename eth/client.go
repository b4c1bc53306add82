package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/airchains-network/txpipe/types"
)

const DefaultPollInterval = 100 * time.Millisecond

// PendingHandle identifies a submitted transaction whose receipt has not been observed
type PendingHandle struct {
	Hash        common.Hash
	SubmittedAt time.Time
}

// Client is the chain façade used by the pipeline. It never caches chain state.
type Client struct {
	transport    Transport
	clock        clockwork.Clock
	pollInterval time.Duration
	log          *logrus.Logger
}

// Option configures a Client
type Option func(*Client)

func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithPollInterval sets how often AwaitReceipt asks for the receipt. Non-positive values are ignored.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

func WithLogger(log *logrus.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient wraps a transport
func NewClient(transport Transport, opts ...Option) *Client {
	c := &Client{
		transport:    transport,
		clock:        clockwork.NewRealClock(),
		pollInterval: DefaultPollInterval,
		log:          logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transport returns the underlying transport
func (c *Client) Transport() Transport { return c.transport }

// GetBalance returns the confirmed balance of addr in wei
func (c *Client) GetBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	balance, err := c.transport.BalanceAt(ctx, addr)
	if err != nil {
		return nil, classify(err, "get balance of "+addr.Hex())
	}
	return balance, nil
}

// GetBalances queries several balances concurrently, in argument order
func (c *Client) GetBalances(ctx context.Context, addrs ...common.Address) ([]*big.Int, error) {
	balances := make([]*big.Int, len(addrs))
	g, ctx := errgroup.WithContext(ctx)
	for i, addr := range addrs {
		i, addr := i, addr
		g.Go(func() error {
			balance, err := c.GetBalance(ctx, addr)
			balances[i] = balance
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return balances, nil
}

// GetNonce returns the number of confirmed transactions sent from addr. The value is only
// the next valid nonce at the instant of the call.
func (c *Client) GetNonce(ctx context.Context, addr common.Address) (uint64, error) {
	nonce, err := c.transport.TransactionCount(ctx, addr)
	if err != nil {
		return 0, classify(err, "get nonce of "+addr.Hex())
	}
	return nonce, nil
}

// SubmitSigned sends raw signed bytes. A refusal by the node is ErrSubmissionRejected; a
// transport failure is types.ErrNetwork and must not be blindly retried.
func (c *Client) SubmitSigned(ctx context.Context, raw []byte) (PendingHandle, error) {
	if len(raw) == 0 {
		return PendingHandle{}, fmt.Errorf("%w: empty transaction", types.ErrInvalidTransactionParameters)
	}
	hash, err := c.transport.SendRawTransaction(ctx, raw)
	if err != nil {
		return PendingHandle{}, classify(err, "submit transaction")
	}
	c.log.Infof("Submitted transaction %s", hash.Hex())
	return PendingHandle{Hash: hash, SubmittedAt: c.clock.Now()}, nil
}

// SubmitUnsigned asks the node to sign and submit args with one of its own accounts
func (c *Client) SubmitUnsigned(ctx context.Context, args TxArgs) (PendingHandle, error) {
	signer, ok := c.transport.(NodeSigner)
	if !ok {
		return PendingHandle{}, ErrNodeSigningUnsupported
	}
	hash, err := signer.SendTransaction(ctx, args)
	if err != nil {
		return PendingHandle{}, classify(err, "send transaction")
	}
	c.log.Infof("Node signed and submitted transaction %s from %s", hash.Hex(), args.From.Hex())
	return PendingHandle{Hash: hash, SubmittedAt: c.clock.Now()}, nil
}

// AwaitReceipt polls for the receipt of handle until it appears, timeout elapses
// (ErrReceiptTimeout) or ctx is done. A receipt with failed status is returned together with
// ErrTransactionReverted. Giving up never affects the submitted transaction. A non-positive
// timeout waits until ctx is done.
func (c *Client) AwaitReceipt(ctx context.Context, handle PendingHandle, timeout time.Duration) (*types.Receipt, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := c.clock.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.Chan()
	}
	ticker := c.clock.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.transport.TransactionReceipt(ctx, handle.Hash)
		switch {
		case err == nil && receipt != nil:
			if !receipt.Succeeded() {
				return receipt, fmt.Errorf("%w: %s in block %d", ErrTransactionReverted, handle.Hash.Hex(), receipt.BlockNumber)
			}
			return receipt, nil
		case err == nil, errors.Is(err, ethereum.NotFound):
		case ctx.Err() != nil:
		default:
			c.log.Warnf("Failed to fetch receipt for %s, retrying: %v", handle.Hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("stopped waiting for %s: %w", handle.Hash.Hex(), ctx.Err())
		case <-deadline:
			return nil, fmt.Errorf("%w: %s after %s", ErrReceiptTimeout, handle.Hash.Hex(), timeout)
		case <-ticker.Chan():
		}
	}
}

// Call executes a read-only call against the latest confirmed state
func (c *Client) Call(ctx context.Context, msg CallMsg) ([]byte, error) {
	out, err := c.transport.Call(ctx, msg)
	if err != nil {
		return nil, classify(err, "call "+msg.To.Hex())
	}
	return out, nil
}

// classify tags errors that carry no category as network errors
func classify(err error, op string) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("failed to %s: %w", op, err)
	case errors.Is(err, types.ErrValidation), errors.Is(err, types.ErrRejected),
		errors.Is(err, types.ErrReverted), errors.Is(err, types.ErrTimeout),
		errors.Is(err, types.ErrNetwork):
		return fmt.Errorf("failed to %s: %w", op, err)
	default:
		return fmt.Errorf("%w: failed to %s: %w", types.ErrNetwork, op, err)
	}
}
