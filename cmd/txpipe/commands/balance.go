package commands

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/airchains-network/txpipe/units"
)

// BalanceCmd represents the balance command
var BalanceCmd = &cobra.Command{
	Use:   "balance <address> [address...]",
	Short: "Print account balances in ether",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return balanceCommand(cmd, args)
	},
}

func balanceCommand(cmd *cobra.Command, args []string) error {
	addrs := make([]common.Address, 0, len(args))
	for _, a := range args {
		if !common.IsHexAddress(a) {
			return fmt.Errorf("invalid address %q", a)
		}
		addrs = append(addrs, common.HexToAddress(a))
	}

	ctx := cmd.Context()
	e, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	balances, err := e.client.GetBalances(ctx, addrs...)
	if err != nil {
		return err
	}
	for i, addr := range addrs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s ether\n", addr.Hex(), units.ToDecimal(balances[i]))
	}
	return nil
}
