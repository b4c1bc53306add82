package contract_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/airchains-network/txpipe/contract"
	"github.com/airchains-network/txpipe/eth"
	"github.com/airchains-network/txpipe/eth/ethtest"
	"github.com/airchains-network/txpipe/eth/mocks"
	"github.com/airchains-network/txpipe/nonce"
	"github.com/airchains-network/txpipe/pipeline"
	"github.com/airchains-network/txpipe/types"
	"github.com/airchains-network/txpipe/wallet"
)

var storageAddr = common.HexToAddress("0x00000000000000000000000000000000000000cc")

func newInvoker(t *testing.T, transport eth.Transport) *contract.Invoker {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	client := eth.NewClient(transport, eth.WithPollInterval(time.Millisecond), eth.WithLogger(log))
	pipe := pipeline.New(client, nonce.NewSequencer(client, log), pipeline.Options{
		ChainID: big.NewInt(1337), ReceiptTimeout: time.Second,
	}, log)
	return contract.NewInvoker(pipe)
}

func TestCallAndInvoke(t *testing.T) {
	ctx := context.Background()
	chain := ethtest.NewChain(big.NewInt(1337))
	storage := ethtest.NewSimpleStorage(big.NewInt(3))
	chain.Deploy(storageAddr, storage)
	key, err := wallet.GenerateAccountKey()
	require.NoError(t, err)
	chain.Fund(key.Address(), big.NewInt(1e18))

	inv := newInvoker(t, chain)
	c := contract.Contract{Address: storageAddr, Artifact: ethtest.SimpleStorageArtifact()}

	out, err := inv.Call(ctx, c, "get")
	require.NoError(t, err)
	require.Equal(t, "3", contract.FormatValue(out[0]))

	receipt, err := inv.Invoke(ctx, c, "set", []interface{}{big.NewInt(77)}, key, pipeline.GasOptions{})
	require.NoError(t, err)
	require.True(t, receipt.Succeeded())

	out, err = inv.Call(ctx, c, "get")
	require.NoError(t, err)
	require.Equal(t, "77", contract.FormatValue(out[0]))
	require.Equal(t, uint64(1), chain.Nonce(key.Address()), "calls never create transactions")
}

func TestCallRevert(t *testing.T) {
	chain := ethtest.NewChain(big.NewInt(1337))
	chain.Deploy(storageAddr, ethtest.NewSimpleStorage(big.NewInt(3)))
	inv := newInvoker(t, chain)
	c := contract.Contract{Address: storageAddr, Artifact: ethtest.SimpleStorageArtifact()}

	_, err := inv.Call(context.Background(), c, "set", big.NewInt(0))
	require.ErrorIs(t, err, eth.ErrCallReverted)
}

func TestInvokeRevertReturnsReceipt(t *testing.T) {
	chain := ethtest.NewChain(big.NewInt(1337))
	chain.Deploy(storageAddr, ethtest.NewSimpleStorage(big.NewInt(3)))
	key, err := wallet.GenerateAccountKey()
	require.NoError(t, err)
	chain.Fund(key.Address(), big.NewInt(1e18))
	inv := newInvoker(t, chain)
	c := contract.Contract{Address: storageAddr, Artifact: ethtest.SimpleStorageArtifact()}

	receipt, err := inv.Invoke(context.Background(), c, "set", []interface{}{big.NewInt(0)}, key, pipeline.GasOptions{GasLimit: 80000})
	require.ErrorIs(t, err, types.ErrReverted)
	require.NotNil(t, receipt)
	require.Equal(t, types.ReceiptStatusFailed, receipt.Status)
}

func TestEncodingErrorsNeverReachTheNetwork(t *testing.T) {
	ctx := context.Background()
	inv := newInvoker(t, mocks.NewMockTransport(gomock.NewController(t)))
	key, err := wallet.GenerateAccountKey()
	require.NoError(t, err)
	c := contract.Contract{Address: storageAddr, Artifact: ethtest.SimpleStorageArtifact()}

	_, err = inv.Call(ctx, c, "owner")
	require.ErrorIs(t, err, types.ErrUnknownFunction)

	_, err = inv.Call(ctx, c, "set", "seven")
	require.ErrorIs(t, err, types.ErrArgumentTypeMismatch)

	receipt, err := inv.Invoke(ctx, c, "owner", nil, key, pipeline.GasOptions{})
	require.ErrorIs(t, err, types.ErrUnknownFunction)
	require.Nil(t, receipt)
}

func TestContractString(t *testing.T) {
	c := contract.Contract{Address: storageAddr, Artifact: ethtest.SimpleStorageArtifact()}
	require.Equal(t, "SimpleStorage@"+storageAddr.Hex(), c.String())
}
