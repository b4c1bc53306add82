package txn_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/airchains-network/txpipe/txn"
)

func sampleTx() txn.UnsignedTransaction {
	return txn.UnsignedTransaction{
		From:     common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"),
		To:       common.HexToAddress("0x3535353535353535353535353535353535353535"),
		Value:    big.NewInt(1_000_000_000_000_000_000),
		GasLimit: 21000,
		GasPrice: big.NewInt(20_000_000_000),
		Nonce:    9,
	}
}

func TestSigningHashMatchesGethSigner(t *testing.T) {
	tx := sampleTx()
	to := tx.To
	legacy := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce: tx.Nonce, GasPrice: tx.GasPrice, Gas: tx.GasLimit, To: &to, Value: tx.Value,
	})

	for _, chainID := range []*big.Int{nil, big.NewInt(1), big.NewInt(1337)} {
		got, err := tx.SigningHash(chainID)
		require.NoError(t, err)
		require.Equal(t, txn.Signer(chainID).Hash(legacy), got, "chain id %v", chainID)
	}
}

func TestEIP155Vector(t *testing.T) {
	// example transaction from EIP-155
	tx := sampleTx()
	payload, err := tx.SigningPayload(big.NewInt(1))
	require.NoError(t, err)
	require.Equal(t,
		"ec098504a817c800825208943535353535353535353535353535353535353535880de0b6b3a764000080018080",
		common.Bytes2Hex(payload))
	require.Equal(t,
		common.HexToHash("0xdaf5a779ae972f972197303d7b574746c7ef83eadac0f2791ad23db92e4c8e53"),
		txn.HashPayload(payload))
}

func TestFromIsNotSigned(t *testing.T) {
	a := sampleTx()
	b := sampleTx()
	b.From = common.HexToAddress("0x01")

	ha, err := a.SigningHash(big.NewInt(1))
	require.NoError(t, err)
	hb, err := b.SigningHash(big.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, ha, hb)
}

func TestChainIDChangesHash(t *testing.T) {
	tx := sampleTx()
	h1, err := tx.SigningHash(big.NewInt(1))
	require.NoError(t, err)
	h2, err := tx.SigningHash(big.NewInt(2))
	require.NoError(t, err)
	h0, err := tx.SigningHash(nil)
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
	require.NotEqual(t, h1, h0)
}

func TestCopyIsDeep(t *testing.T) {
	tx := sampleTx()
	tx.Data = []byte{1, 2, 3}
	cpy := tx.Copy()
	cpy.Value.SetInt64(1)
	cpy.GasPrice.SetInt64(1)
	cpy.Data[0] = 9

	require.Equal(t, int64(1_000_000_000_000_000_000), tx.Value.Int64())
	require.Equal(t, int64(20_000_000_000), tx.GasPrice.Int64())
	require.Equal(t, byte(1), tx.Data[0])
}

func TestKind(t *testing.T) {
	tx := sampleTx()
	require.Equal(t, txn.KindTransfer, tx.Kind())
	tx.Data = []byte{0xa9, 0x05, 0x9c, 0xbb}
	require.Equal(t, txn.KindContractCall, tx.Kind())
	require.Equal(t, "contract-call", tx.Kind().String())
}
