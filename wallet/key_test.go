package wallet

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/airchains-network/txpipe/txn"
	"github.com/airchains-network/txpipe/types"
)

const (
	testSecret  = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testAddress = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
)

func testTransfer() txn.UnsignedTransaction {
	return txn.UnsignedTransaction{
		From:     common.HexToAddress(testAddress),
		To:       common.HexToAddress("0x700962e054A05511c87c19693AB7eF0F1d3EEA26"),
		Value:    big.NewInt(10000),
		GasLimit: 21000,
		GasPrice: big.NewInt(1),
		Nonce:    7,
	}
}

func TestAccountKeyFromHex(t *testing.T) {
	for _, secret := range []string{testSecret, "0x" + testSecret, " " + testSecret + "\n"} {
		key, err := AccountKeyFromHex(secret)
		require.NoError(t, err)
		require.Equal(t, common.HexToAddress(testAddress), key.Address())
	}
}

func TestInvalidKeyMaterial(t *testing.T) {
	for _, secret := range []string{"", "zz", testSecret[:62], "00" + testSecret} {
		_, err := AccountKeyFromHex(secret)
		require.ErrorIs(t, err, ErrInvalidKeyMaterial, secret)
		require.ErrorIs(t, err, types.ErrValidation)
	}
	_, err := NewAccountKey(make([]byte, 32))
	require.ErrorIs(t, err, ErrInvalidKeyMaterial)

	_, err = NewAccountKey([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrInvalidKeyMaterial)

	var empty AccountKey
	_, err = empty.Sign(testTransfer(), big.NewInt(1))
	require.ErrorIs(t, err, ErrInvalidKeyMaterial)
}

func TestSignMatchesGeth(t *testing.T) {
	key, err := AccountKeyFromHex(testSecret)
	require.NoError(t, err)

	for _, chainID := range []*big.Int{nil, big.NewInt(1), big.NewInt(1337)} {
		tx := testTransfer()
		sig, err := key.Sign(tx, chainID)
		require.NoError(t, err)

		signed, err := txn.Assemble(tx, sig, chainID)
		require.NoError(t, err)

		to := tx.To
		gethTx, err := ethtypes.SignTx(ethtypes.NewTx(&ethtypes.LegacyTx{
			Nonce:    tx.Nonce,
			GasPrice: tx.GasPrice,
			Gas:      tx.GasLimit,
			To:       &to,
			Value:    tx.Value,
		}), txn.Signer(chainID), key.priv)
		require.NoError(t, err)
		want, err := gethTx.MarshalBinary()
		require.NoError(t, err)

		require.Equal(t, want, signed.Raw(), "chain %v", chainID)
		require.Equal(t, gethTx.Hash(), signed.Hash())

		sender, err := signed.Sender()
		require.NoError(t, err)
		require.Equal(t, key.Address(), sender)
	}
}

func TestSignDoesNotMutate(t *testing.T) {
	key, err := GenerateAccountKey()
	require.NoError(t, err)

	tx := testTransfer()
	tx.Data = []byte{0xca, 0xfe}
	before := tx.Copy()
	_, err = key.Sign(tx, big.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, before, tx)
}

func TestVerify(t *testing.T) {
	key, err := GenerateAccountKey()
	require.NoError(t, err)
	chainID := big.NewInt(1337)

	tx := testTransfer()
	sig, err := key.Sign(tx, chainID)
	require.NoError(t, err)
	payload, err := tx.SigningPayload(chainID)
	require.NoError(t, err)
	require.True(t, Verify(key.Address(), payload, sig))

	other, err := GenerateAccountKey()
	require.NoError(t, err)
	require.False(t, Verify(other.Address(), payload, sig))

	mutations := map[string]func(tx *txn.UnsignedTransaction){
		"recipient": func(tx *txn.UnsignedTransaction) { tx.To[0] ^= 1 },
		"value":     func(tx *txn.UnsignedTransaction) { tx.Value.Add(tx.Value, big.NewInt(1)) },
		"gas limit": func(tx *txn.UnsignedTransaction) { tx.GasLimit++ },
		"gas price": func(tx *txn.UnsignedTransaction) { tx.GasPrice = big.NewInt(2) },
		"nonce":     func(tx *txn.UnsignedTransaction) { tx.Nonce++ },
		"payload":   func(tx *txn.UnsignedTransaction) { tx.Data = []byte{1} },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			mutated := tx.Copy()
			mutate(&mutated)
			payload, err := mutated.SigningPayload(chainID)
			require.NoError(t, err)
			require.False(t, Verify(key.Address(), payload, sig))

			_, err = txn.Assemble(mutated, sig, chainID)
			require.ErrorIs(t, err, txn.ErrSignatureMismatch)
		})
	}
}

func TestKeyNeverPrinted(t *testing.T) {
	key, err := AccountKeyFromHex(testSecret)
	require.NoError(t, err)
	for _, format := range []string{"%v", "%s", "%+v", "%#v"} {
		out := fmt.Sprintf(format, key)
		require.NotContains(t, out, testSecret[:16], format)
	}
}
