// Package ethtest is an in-memory chain implementing eth.Transport. It decodes real signed
// transactions, recovers senders and keeps balances and nonces the way a node would, which
// makes it a drop-in for end-to-end pipeline tests.
package ethtest

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/airchains-network/txpipe/eth"
	"github.com/airchains-network/txpipe/types"
)

const (
	TxGas                 = 21000
	TxDataZeroGas         = 4
	TxDataNonZeroGas      = 16
	defaultNodeGasPrice   = 1
	defaultNodeCallGasCap = 100000
)

// Contract is code living at an address of the chain
type Contract interface {
	// Call runs a read-only call.
	Call(from common.Address, data []byte) ([]byte, error)
	// Execute applies a state-changing call and returns the gas used on top of intrinsic gas.
	Execute(from common.Address, value *big.Int, data []byte) (uint64, error)
}

// Chain is safe for concurrent use
type Chain struct {
	mu        sync.Mutex
	chainID   *big.Int
	signer    ethtypes.Signer
	accounts  map[common.Address]*types.EVMAccount
	contracts map[common.Address]Contract
	pending   map[common.Address]map[uint64]*ethtypes.Transaction
	receipts  map[common.Hash]*types.Receipt
	keys      map[common.Address]*ecdsa.PrivateKey
	included  map[common.Address][]uint64
	block     uint64
	autoMine  bool
	submitted int
}

// NewChain creates an empty chain that includes transactions as soon as they are executable
func NewChain(chainID *big.Int) *Chain {
	return &Chain{
		chainID:   chainID,
		signer:    ethtypes.LatestSignerForChainID(chainID),
		accounts:  make(map[common.Address]*types.EVMAccount),
		contracts: make(map[common.Address]Contract),
		pending:   make(map[common.Address]map[uint64]*ethtypes.Transaction),
		receipts:  make(map[common.Hash]*types.Receipt),
		keys:      make(map[common.Address]*ecdsa.PrivateKey),
		included:  make(map[common.Address][]uint64),
		autoMine:  true,
	}
}

// Fund credits addr with wei
func (c *Chain) Fund(addr common.Address, wei *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	acc := c.account(addr)
	acc.Balance.Add(acc.Balance, wei)
}

// Deploy places contract at addr
func (c *Chain) Deploy(addr common.Address, contract Contract) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contracts[addr] = contract
	c.account(addr).Code = []byte{0x00}
}

// Unlock lets the node sign for the key's account through eth_sendTransaction
func (c *Chain) Unlock(key *ecdsa.PrivateKey) common.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	addr := crypto.PubkeyToAddress(key.PublicKey)
	c.keys[addr] = key
	return addr
}

// SetAutoMine toggles immediate inclusion. With it off, transactions stay pending until Mine.
func (c *Chain) SetAutoMine(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoMine = on
}

// Mine includes every executable pending transaction and returns how many were included
func (c *Chain) Mine() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mine()
}

// Balance is a direct state read for assertions
func (c *Chain) Balance(addr common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.account(addr).Balance)
}

// Nonce is a direct state read for assertions
func (c *Chain) Nonce(addr common.Address) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.account(addr).Nonce
}

// Submitted counts accepted and refused submissions
func (c *Chain) Submitted() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitted
}

// Included returns the nonces of sender's included transactions in inclusion order
func (c *Chain) Included(sender common.Address) []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint64(nil), c.included[sender]...)
}

func (c *Chain) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	return c.Balance(addr), ctx.Err()
}

func (c *Chain) TransactionCount(ctx context.Context, addr common.Address) (uint64, error) {
	return c.Nonce(addr), ctx.Err()
}

func (c *Chain) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	var tx ethtypes.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, eth.RejectionError(err.Error())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submit(&tx)
}

func (c *Chain) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	cpy := *r
	cpy.EffectiveGasPrice = new(big.Int).Set(r.EffectiveGasPrice)
	return &cpy, nil
}

func (c *Chain) Call(ctx context.Context, msg eth.CallMsg) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	contract, ok := c.contracts[msg.To]
	c.mu.Unlock()
	if !ok {
		return nil, nil
	}
	out, err := contract.Call(msg.From, msg.Data)
	if err != nil {
		return nil, &eth.RevertError{Reason: err.Error()}
	}
	return out, nil
}

// SendTransaction implements eth.NodeSigner for unlocked accounts
func (c *Chain) SendTransaction(ctx context.Context, args eth.TxArgs) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.keys[args.From]
	if !ok {
		return common.Hash{}, eth.RejectionError("unknown account " + args.From.Hex())
	}
	legacy := &ethtypes.LegacyTx{
		To:       args.To,
		Value:    orZero(args.Value),
		Gas:      args.Gas,
		GasPrice: args.GasPrice,
		Data:     args.Data,
	}
	if args.Nonce != nil {
		legacy.Nonce = *args.Nonce
	} else {
		legacy.Nonce = c.account(args.From).Nonce + uint64(len(c.pending[args.From]))
	}
	if legacy.Gas == 0 {
		legacy.Gas = defaultNodeCallGasCap
	}
	if legacy.GasPrice == nil {
		legacy.GasPrice = big.NewInt(defaultNodeGasPrice)
	}
	tx, err := ethtypes.SignTx(ethtypes.NewTx(legacy), c.signer, key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign: %w", err)
	}
	return c.submit(tx)
}

// submit validates tx like a node's pool would. Caller holds c.mu.
func (c *Chain) submit(tx *ethtypes.Transaction) (common.Hash, error) {
	c.submitted++
	hash := tx.Hash()
	sender, err := ethtypes.Sender(c.signer, tx)
	if err != nil {
		return common.Hash{}, eth.RejectionError("invalid sender: " + err.Error())
	}
	if _, ok := c.receipts[hash]; ok {
		return hash, nil
	}
	if queued, ok := c.pending[sender][tx.Nonce()]; ok {
		if queued.Hash() == hash {
			return hash, nil
		}
		return common.Hash{}, eth.RejectionError("replacement transaction underpriced")
	}

	acc := c.account(sender)
	if tx.Nonce() < acc.Nonce {
		return common.Hash{}, eth.RejectionError(fmt.Sprintf("nonce too low: address %s, tx: %d state: %d", sender.Hex(), tx.Nonce(), acc.Nonce))
	}
	if tx.To() == nil {
		return common.Hash{}, eth.RejectionError("contract creation is not supported")
	}
	if tx.Gas() < IntrinsicGas(tx.Data()) {
		return common.Hash{}, eth.RejectionError("intrinsic gas too low")
	}
	if acc.Balance.Cmp(tx.Cost()) < 0 {
		return common.Hash{}, eth.RejectionError(fmt.Sprintf("insufficient funds for gas * price + value: address %s have %s want %s", sender.Hex(), acc.Balance, tx.Cost()))
	}

	if c.pending[sender] == nil {
		c.pending[sender] = make(map[uint64]*ethtypes.Transaction)
	}
	c.pending[sender][tx.Nonce()] = tx
	if c.autoMine {
		c.mine()
	}
	return hash, nil
}

// mine includes pending transactions in nonce order per sender. Caller holds c.mu.
func (c *Chain) mine() int {
	count := 0
	for sender, queue := range c.pending {
		acc := c.account(sender)
		for {
			tx, ok := queue[acc.Nonce]
			if !ok {
				break
			}
			delete(queue, acc.Nonce)
			c.apply(sender, acc, tx)
			count++
		}
		if len(queue) == 0 {
			delete(c.pending, sender)
		}
	}
	return count
}

// apply executes tx. The sender pays value + gasUsed*gasPrice and its nonce moves on even
// when execution fails. A sender that can no longer afford tx when it is mined gets a failed
// receipt, pays at most its remaining balance and transfers nothing.
func (c *Chain) apply(sender common.Address, acc *types.EVMAccount, tx *ethtypes.Transaction) {
	status := types.ReceiptStatusSuccessful
	gasUsed := IntrinsicGas(tx.Data())
	affordable := acc.Balance.Cmp(tx.Cost()) >= 0
	if contract, ok := c.contracts[*tx.To()]; ok && affordable {
		extra, err := contract.Execute(sender, tx.Value(), tx.Data())
		gasUsed += extra
		if err != nil {
			status = types.ReceiptStatusFailed
		}
	}
	if !affordable {
		status = types.ReceiptStatusFailed
	}
	if gasUsed > tx.Gas() {
		gasUsed = tx.Gas()
		status = types.ReceiptStatusFailed
	}

	gasCost := new(big.Int).Mul(new(big.Int).SetUint64(gasUsed), tx.GasPrice())
	if gasCost.Cmp(acc.Balance) > 0 {
		gasCost.Set(acc.Balance)
	}
	acc.Balance.Sub(acc.Balance, gasCost)
	acc.Nonce++
	if status == types.ReceiptStatusSuccessful {
		acc.Balance.Sub(acc.Balance, tx.Value())
		to := c.account(*tx.To())
		to.Balance.Add(to.Balance, tx.Value())
	}

	c.block++
	c.included[sender] = append(c.included[sender], tx.Nonce())
	c.receipts[tx.Hash()] = &types.Receipt{
		TxHash:            tx.Hash(),
		Status:            status,
		GasUsed:           gasUsed,
		BlockNumber:       c.block,
		EffectiveGasPrice: new(big.Int).Set(tx.GasPrice()),
	}
}

func (c *Chain) account(addr common.Address) *types.EVMAccount {
	acc, ok := c.accounts[addr]
	if !ok {
		acc = &types.EVMAccount{Balance: new(big.Int)}
		c.accounts[addr] = acc
	}
	return acc
}

// IntrinsicGas is the base cost of a call with data
func IntrinsicGas(data []byte) uint64 {
	gas := uint64(TxGas)
	for _, b := range data {
		if b == 0 {
			gas += TxDataZeroGas
		} else {
			gas += TxDataNonZeroGas
		}
	}
	return gas
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
