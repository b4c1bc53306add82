package commands

import (
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/airchains-network/txpipe/types"
	"github.com/airchains-network/txpipe/units"
)

// TransferCmd represents the transfer command
var TransferCmd = &cobra.Command{
	Use:   "transfer <to> <amount>",
	Short: "Send value and wait for the receipt",
	Long: `Send value from the configured account to <to> and wait for the receipt.
Amounts take a unit suffix: "1.5ether", "1000wei"; a bare number is ether.
Both balances are printed before and after the transfer.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transferCommand(cmd, args)
	},
}

func init() {
	gasFlags(TransferCmd)
}

func transferCommand(cmd *cobra.Command, args []string) error {
	if !common.IsHexAddress(args[0]) {
		return fmt.Errorf("invalid recipient %q", args[0])
	}
	to := common.HexToAddress(args[0])
	value, err := units.ParseAmount(args[1])
	if err != nil {
		return err
	}
	gas, err := gasOptions(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	e, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	key, err := e.signer(cmd)
	if err != nil {
		return err
	}
	from := key.Address()
	out := cmd.OutOrStdout()

	if err := printBalances(cmd, e, "Before", from, to); err != nil {
		return err
	}

	e.log.Infof("Transferring %s ether to %s", units.ToDecimal(value), to.Hex())
	run, err := e.pipe.Transfer(ctx, key, to, value, gas)
	if run != nil && run.Hash() != (common.Hash{}) {
		fmt.Fprintf(out, "Transaction: %s (%s)\n", run.Hash().Hex(), run.State())
	}
	if err != nil {
		return err
	}
	printReceipt(out, run.Receipt())

	return printBalances(cmd, e, "After", from, to)
}

func printBalances(cmd *cobra.Command, e *env, label string, from, to common.Address) error {
	balances, err := e.client.GetBalances(cmd.Context(), from, to)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s:\n", label)
	fmt.Fprintf(out, "  %s: %s ether\n", from.Hex(), units.ToDecimal(balances[0]))
	fmt.Fprintf(out, "  %s: %s ether\n", to.Hex(), units.ToDecimal(balances[1]))
	return nil
}

func printReceipt(out io.Writer, r *types.Receipt) {
	if r == nil {
		return
	}
	status := "success"
	if !r.Succeeded() {
		status = "reverted"
	}
	fmt.Fprintf(out, "Receipt: %s\n", r.TxHash.Hex())
	fmt.Fprintf(out, "  Status: %s\n", status)
	fmt.Fprintf(out, "  Block: %d\n", r.BlockNumber)
	fmt.Fprintf(out, "  Gas Used: %d\n", r.GasUsed)
	if fee := r.Fee(); fee != nil {
		fmt.Fprintf(out, "  Fee: %s ether\n", units.ToDecimal(fee))
	}
}
