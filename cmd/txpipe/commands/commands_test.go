package commands

import (
	"bytes"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/airchains-network/txpipe/config"
	"github.com/airchains-network/txpipe/types"
)

func newInitCmd(t *testing.T, path string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cmd := &cobra.Command{Use: "init"}
	initFlags(cmd)
	cmd.Flags().String("config", path, "")
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	return cmd, out
}

func TestInitWritesConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/home/dev/.txpipe/config.toml"
	cmd, out := newInitCmd(t, path)
	require.NoError(t, cmd.Flags().Set("rpc-url", "http://10.0.0.5:8545"))
	require.NoError(t, cmd.Flags().Set("chain-id", "1337"))
	require.NoError(t, cmd.Flags().Set("key-file", "/home/dev/key.hex"))

	require.NoError(t, initCommand(cmd, fs))
	require.Contains(t, out.String(), "RPC URL: http://10.0.0.5:8545")

	cfg, err := config.LoadConfig(fs, path)
	require.NoError(t, err)
	require.Equal(t, "http://10.0.0.5:8545", cfg.General.RPCURL)
	require.Equal(t, int64(1337), cfg.General.ChainID)
	require.Equal(t, "/home/dev/key.hex", cfg.Account.PrivateKeyFile)
	require.Equal(t, filepath.Join("/home/dev/.txpipe", "data", "journal"), cfg.Journal.Path)
}

func TestInitRefusesOverwrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/cfg/config.toml"
	cmd, _ := newInitCmd(t, path)
	require.NoError(t, initCommand(cmd, fs))
	require.Error(t, initCommand(cmd, fs))

	require.NoError(t, cmd.Flags().Set("force", "true"))
	require.NoError(t, cmd.Flags().Set("listen", ":9999"))
	require.NoError(t, initCommand(cmd, fs))
	cfg, err := config.LoadConfig(fs, path)
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.Server.Listen)
}

func TestInitRejectsBadURL(t *testing.T) {
	fs := afero.NewMemMapFs()
	cmd, _ := newInitCmd(t, "/cfg/config.toml")
	require.NoError(t, cmd.Flags().Set("rpc-url", "not a url"))
	require.ErrorIs(t, initCommand(cmd, fs), config.ErrInvalidConfig)

	exists, err := afero.Exists(fs, "/cfg/config.toml")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestLoadArtifactsFromCombined(t *testing.T) {
	cmd := &cobra.Command{}
	sourceFlags(cmd)
	require.NoError(t, cmd.Flags().Set("combined", filepath.Join("..", "..", "..", "compiler", "testdata", "combined.json")))

	artifacts, err := loadArtifacts(cmd, afero.NewOsFs(), config.DefaultConfig(), nil)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	require.Equal(t, "Counter", artifacts[0].Name)
	require.Equal(t, "SimpleStorage", artifacts[1].Name)
}

func TestGasOptions(t *testing.T) {
	cmd := &cobra.Command{}
	gasFlags(cmd)

	gas, err := gasOptions(cmd)
	require.NoError(t, err)
	require.Zero(t, gas.GasLimit)
	require.Nil(t, gas.GasPrice)

	require.NoError(t, cmd.Flags().Set("gas-limit", "50000"))
	require.NoError(t, cmd.Flags().Set("gas-price", "7"))
	gas, err = gasOptions(cmd)
	require.NoError(t, err)
	require.Equal(t, uint64(50000), gas.GasLimit)
	require.Equal(t, big.NewInt(7), gas.GasPrice)

	require.NoError(t, cmd.Flags().Set("gas-price", "-1"))
	_, err = gasOptions(cmd)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestPrintReceipt(t *testing.T) {
	out := new(bytes.Buffer)
	printReceipt(out, &types.Receipt{
		TxHash:            common.HexToHash("0x01"),
		Status:            types.ReceiptStatusFailed,
		GasUsed:           21000,
		BlockNumber:       4,
		EffectiveGasPrice: big.NewInt(1_000_000_000),
	})
	require.Contains(t, out.String(), "Status: reverted")
	require.Contains(t, out.String(), "Block: 4")
	require.Contains(t, out.String(), "Fee: 0.000021 ether")

	out.Reset()
	printReceipt(out, nil)
	require.Empty(t, out.String())
}
