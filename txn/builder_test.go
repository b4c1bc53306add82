package txn_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/airchains-network/txpipe/eth/ethtest"
	"github.com/airchains-network/txpipe/txn"
	"github.com/airchains-network/txpipe/types"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

func TestBuildTransfer(t *testing.T) {
	value := big.NewInt(10)
	tx, err := txn.BuildTransfer(txn.TransferRequest{
		From: alice, To: bob, Value: value, GasLimit: 21000, GasPrice: big.NewInt(1), Nonce: 4,
	})
	require.NoError(t, err)
	require.Equal(t, alice, tx.From)
	require.Equal(t, bob, tx.To)
	require.Equal(t, uint64(4), tx.Nonce)
	require.Empty(t, tx.Data)

	value.SetInt64(99)
	require.Equal(t, int64(10), tx.Value.Int64(), "request values are copied")
}

func TestBuildTransferEdgeValues(t *testing.T) {
	tx, err := txn.BuildTransfer(txn.TransferRequest{From: alice, To: alice, GasLimit: 21000, GasPrice: big.NewInt(1)})
	require.NoError(t, err, "zero value self transfer is allowed")
	require.Zero(t, tx.Value.Sign())
}

func TestBuildTransferValidation(t *testing.T) {
	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	for name, req := range map[string]txn.TransferRequest{
		"negative value":     {Value: big.NewInt(-1), GasLimit: 21000, GasPrice: big.NewInt(1)},
		"value over 256 bit": {Value: tooBig, GasLimit: 21000, GasPrice: big.NewInt(1)},
		"zero gas limit":     {Value: big.NewInt(1), GasPrice: big.NewInt(1)},
		"missing gas price":  {Value: big.NewInt(1), GasLimit: 21000},
		"zero gas price":     {Value: big.NewInt(1), GasLimit: 21000, GasPrice: new(big.Int)},
		"gas price too big":  {Value: big.NewInt(1), GasLimit: 21000, GasPrice: tooBig},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := txn.BuildTransfer(req)
			require.ErrorIs(t, err, types.ErrInvalidTransactionParameters)
			require.ErrorIs(t, err, types.ErrValidation)
		})
	}
}

func TestBuildContractCall(t *testing.T) {
	art := ethtest.SimpleStorageArtifact()
	tx, err := txn.BuildContractCall(txn.CallRequest{
		From: alice, Contract: bob, Artifact: art, Function: "set",
		Args: []interface{}{big.NewInt(7)}, GasLimit: 60000, GasPrice: big.NewInt(1), Nonce: 2,
	})
	require.NoError(t, err)

	want, err := art.ABI.Pack("set", big.NewInt(7))
	require.NoError(t, err)
	require.Equal(t, want, tx.Data)
	require.Equal(t, bob, tx.To)
	require.Zero(t, tx.Value.Sign())
	require.Equal(t, txn.KindContractCall, tx.Kind())
}

func TestEncodeCallErrors(t *testing.T) {
	art := ethtest.SimpleStorageArtifact()

	_, err := txn.EncodeCall(nil, "set", nil)
	require.ErrorIs(t, err, types.ErrInvalidTransactionParameters)

	_, err = txn.EncodeCall(art, "transfer", nil)
	require.ErrorIs(t, err, types.ErrUnknownFunction)

	_, err = txn.EncodeCall(art, "set", nil)
	require.ErrorIs(t, err, types.ErrArgumentTypeMismatch)

	_, err = txn.EncodeCall(art, "set", []interface{}{"seven"})
	require.ErrorIs(t, err, types.ErrArgumentTypeMismatch)
	require.ErrorIs(t, err, types.ErrValidation)
}

func TestEncodeCallNoArgs(t *testing.T) {
	art := ethtest.SimpleStorageArtifact()
	data, err := txn.EncodeCall(art, "get", nil)
	require.NoError(t, err)
	require.Equal(t, art.ABI.Methods["get"].ID, data)
}
