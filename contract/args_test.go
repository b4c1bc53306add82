package contract_test

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/airchains-network/txpipe/contract"
	"github.com/airchains-network/txpipe/types"
)

const mixedABI = `[{"type":"function","name":"mix","stateMutability":"nonpayable","inputs":[
	{"name":"a","type":"uint8"},
	{"name":"b","type":"int256"},
	{"name":"c","type":"bool"},
	{"name":"d","type":"address"},
	{"name":"e","type":"string"},
	{"name":"f","type":"bytes"},
	{"name":"g","type":"bytes4"},
	{"name":"h","type":"uint256"},
	{"name":"i","type":"int32"}
],"outputs":[]}]`

func mixedArtifact(t *testing.T) *types.ContractArtifact {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(mixedABI))
	require.NoError(t, err)
	return types.NewContractArtifact("Mixed", parsed, nil)
}

func TestParseArgs(t *testing.T) {
	art := mixedArtifact(t)
	args, err := contract.ParseArgs(art, "mix", []string{
		"255", "-12", "true", "0x00000000000000000000000000000000000000Aa", "hello", "0x0102", "0xdeadbeef", "0x10", "-5",
	})
	require.NoError(t, err)
	require.Equal(t, uint8(255), args[0])
	require.Equal(t, big.NewInt(-12), args[1])
	require.Equal(t, true, args[2])
	require.Equal(t, common.HexToAddress("0xaa"), args[3])
	require.Equal(t, "hello", args[4])
	require.Equal(t, []byte{1, 2}, args[5])
	require.Equal(t, [4]byte{0xde, 0xad, 0xbe, 0xef}, args[6])
	require.Equal(t, big.NewInt(16), args[7])
	require.Equal(t, int32(-5), args[8])

	_, err = art.ABI.Pack("mix", args...)
	require.NoError(t, err, "parsed values are accepted by the encoder")
}

func TestParseArgsErrors(t *testing.T) {
	art := mixedArtifact(t)
	valid := []string{"1", "1", "true", "0x00000000000000000000000000000000000000aa", "s", "0x", "0x00000000", "1", "1"}

	cases := map[int]string{
		0: "256",
		1: "one",
		2: "maybe",
		3: "0x1234",
		5: "zz",
		6: "0x00",
		7: "-1",
		8: "2147483648",
	}
	for idx, bad := range cases {
		raw := append([]string(nil), valid...)
		raw[idx] = bad
		_, err := contract.ParseArgs(art, "mix", raw)
		require.ErrorIs(t, err, types.ErrArgumentTypeMismatch, "argument %d = %q", idx, bad)
	}

	_, err := contract.ParseArgs(art, "mix", valid[:2])
	require.ErrorIs(t, err, types.ErrArgumentTypeMismatch)

	_, err = contract.ParseArgs(art, "nope", nil)
	require.ErrorIs(t, err, types.ErrUnknownFunction)
}

func TestFormatValue(t *testing.T) {
	require.Equal(t, "42", contract.FormatValue(big.NewInt(42)))
	require.Equal(t, "0x0102", contract.FormatValue([]byte{1, 2}))
	require.Equal(t, "0xdeadbeef", contract.FormatValue([4]byte{0xde, 0xad, 0xbe, 0xef}))
	require.Equal(t, "true", contract.FormatValue(true))
	require.Equal(t, common.HexToAddress("0xaa").Hex(), contract.FormatValue(common.HexToAddress("0xaa")))
}
