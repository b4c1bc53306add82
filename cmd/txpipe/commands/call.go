package commands

import (
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/airchains-network/txpipe/compiler"
	"github.com/airchains-network/txpipe/contract"
)

// CallCmd represents the call command
var CallCmd = &cobra.Command{
	Use:   "call <contract> <address> <function> [args...]",
	Short: "Run a read-only contract call",
	Long: `Compile the sources, find <contract> and call <function> on the deployed instance at
<address> without sending a transaction. Arguments are given in their text form:
integers in decimal or 0x-hex, addresses and bytes in 0x-hex, booleans as true/false.`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return callCommand(cmd, args)
	},
}

func init() {
	sourceFlags(CallCmd)
}

// resolveCall compiles the sources and parses the function arguments
func resolveCall(cmd *cobra.Command, e *env, args []string) (contract.Contract, []interface{}, error) {
	if !common.IsHexAddress(args[1]) {
		return contract.Contract{}, nil, fmt.Errorf("invalid contract address %q", args[1])
	}
	artifacts, err := loadArtifacts(cmd, e.fs, e.cfg, e.log)
	if err != nil {
		return contract.Contract{}, nil, err
	}
	artifact, err := compiler.FindByName(args[0], artifacts)
	if err != nil {
		return contract.Contract{}, nil, err
	}
	values, err := contract.ParseArgs(artifact, args[2], args[3:])
	if err != nil {
		return contract.Contract{}, nil, err
	}
	return contract.Contract{Address: common.HexToAddress(args[1]), Artifact: artifact}, values, nil
}

func callCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	c, values, err := resolveCall(cmd, e, args)
	if err != nil {
		return err
	}
	results, err := contract.NewInvoker(e.pipe).Call(ctx, c, args[2], values...)
	if err != nil {
		return err
	}
	printResults(cmd.OutOrStdout(), results)
	return nil
}

func printResults(out io.Writer, results []interface{}) {
	for _, r := range results {
		fmt.Fprintln(out, contract.FormatValue(r))
	}
}
