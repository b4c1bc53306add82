package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/airchains-network/txpipe/types"
)

const defaultMaxRetries = 3

// revertErrorCode is what geth answers for a reverted eth_call
const revertErrorCode = 3

// DialOptions tunes the RPC transport
type DialOptions struct {
	// MaxRetries bounds HTTP retries of read queries. Submissions are never retried.
	MaxRetries int
	// RateLimit caps requests per second; zero disables the limiter.
	RateLimit float64
	// Timeout bounds a single HTTP request.
	Timeout time.Duration
	Log     *logrus.Logger
}

// RPCTransport speaks JSON-RPC to a node over HTTP or WebSocket. Reads go through a retrying
// client; eth_sendRawTransaction and eth_sendTransaction go through one that never retries.
type RPCTransport struct {
	Rpc     *rpc.Client
	Eth     *ethclient.Client
	submit  *rpc.Client
	limiter *rate.Limiter
}

// Dial connects to url
func Dial(ctx context.Context, url string, opts DialOptions) (*RPCTransport, error) {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}

	var (
		queryClient, submitClient *rpc.Client
		err                       error
	)
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		retryClient := retryablehttp.NewClient()
		retryClient.RetryMax = opts.MaxRetries
		retryClient.HTTPClient.Timeout = opts.Timeout
		retryClient.Logger = leveledLogger{opts.Log.WithField("component", "rpc")}

		queryClient, err = rpc.DialOptions(ctx, url, rpc.WithHTTPClient(retryClient.StandardClient()))
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s: %w", url, err)
		}
		submitClient, err = rpc.DialOptions(ctx, url, rpc.WithHTTPClient(&http.Client{Timeout: opts.Timeout}))
		if err != nil {
			queryClient.Close()
			return nil, fmt.Errorf("failed to dial %s: %w", url, err)
		}
	} else {
		queryClient, err = rpc.DialContext(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s: %w", url, err)
		}
		submitClient = queryClient
	}

	t := &RPCTransport{
		Rpc:    queryClient,
		Eth:    ethclient.NewClient(queryClient),
		submit: submitClient,
	}
	if opts.RateLimit > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return t, nil
}

// Close releases both connections
func (t *RPCTransport) Close() {
	if t.submit != t.Rpc {
		t.submit.Close()
	}
	t.Rpc.Close()
}

func (t *RPCTransport) wait(ctx context.Context) error {
	if t.limiter == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}

func (t *RPCTransport) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.Eth.BalanceAt(ctx, addr, nil)
}

// TransactionCount is the nonce at the latest block, not counting pooled transactions
func (t *RPCTransport) TransactionCount(ctx context.Context, addr common.Address) (uint64, error) {
	if err := t.wait(ctx); err != nil {
		return 0, err
	}
	return t.Eth.NonceAt(ctx, addr, nil)
}

func (t *RPCTransport) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	if err := t.wait(ctx); err != nil {
		return common.Hash{}, err
	}
	var hash common.Hash
	err := t.submit.CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(raw))
	if err == nil {
		return hash, nil
	}
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return common.Hash{}, err
	}
	if IsAlreadyKnown(rpcErr.Error()) {
		return crypto.Keccak256Hash(raw), nil
	}
	return common.Hash{}, RejectionError(rpcErr.Error())
}

func (t *RPCTransport) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	r, err := t.Eth.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	receipt := &types.Receipt{
		TxHash:            r.TxHash,
		Status:            types.ReceiptStatus(r.Status),
		GasUsed:           r.GasUsed,
		EffectiveGasPrice: r.EffectiveGasPrice,
	}
	if r.BlockNumber != nil {
		receipt.BlockNumber = r.BlockNumber.Uint64()
	}
	return receipt, nil
}

func (t *RPCTransport) Call(ctx context.Context, msg CallMsg) ([]byte, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	to := msg.To
	out, err := t.Eth.CallContract(ctx, ethereum.CallMsg{From: msg.From, To: &to, Data: msg.Data}, nil)
	if err == nil {
		return out, nil
	}
	if revert, ok := revertFromRPC(err); ok {
		return nil, revert
	}
	return nil, err
}

// revertFromRPC recognises the node's answer to a call that failed in the EVM. Other JSON-RPC
// errors, such as an unknown method or bad params, are not reverts.
func revertFromRPC(err error) (*RevertError, bool) {
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return nil, false
	}
	if rpcErr.ErrorCode() != revertErrorCode && !strings.Contains(strings.ToLower(rpcErr.Error()), "execution reverted") {
		return nil, false
	}
	revert := &RevertError{Reason: rpcErr.Error()}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if s, ok := dataErr.ErrorData().(string); ok {
			revert.Data, _ = hexutil.Decode(s)
		}
	}
	if reason, err := abi.UnpackRevert(revert.Data); err == nil {
		revert.Reason = reason
	}
	return revert, true
}

// SendTransaction implements NodeSigner through eth_sendTransaction
func (t *RPCTransport) SendTransaction(ctx context.Context, args TxArgs) (common.Hash, error) {
	if err := t.wait(ctx); err != nil {
		return common.Hash{}, err
	}
	arg := map[string]interface{}{"from": args.From}
	if args.To != nil {
		arg["to"] = args.To
	}
	if args.Value != nil {
		arg["value"] = (*hexutil.Big)(args.Value)
	}
	if args.Gas != 0 {
		arg["gas"] = hexutil.Uint64(args.Gas)
	}
	if args.GasPrice != nil {
		arg["gasPrice"] = (*hexutil.Big)(args.GasPrice)
	}
	if args.Nonce != nil {
		arg["nonce"] = hexutil.Uint64(*args.Nonce)
	}
	if len(args.Data) > 0 {
		arg["data"] = hexutil.Bytes(args.Data)
	}

	var hash common.Hash
	err := t.submit.CallContext(ctx, &hash, "eth_sendTransaction", arg)
	if err == nil {
		return hash, nil
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return common.Hash{}, RejectionError(rpcErr.Error())
	}
	return common.Hash{}, err
}

// leveledLogger adapts logrus to retryablehttp.LeveledLogger
type leveledLogger struct {
	entry *logrus.Entry
}

func (l leveledLogger) fields(keysAndValues []interface{}) *logrus.Entry {
	entry := l.entry
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		entry = entry.WithField(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1])
	}
	return entry
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Error(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Debug(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Debug(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Warn(msg)
}
