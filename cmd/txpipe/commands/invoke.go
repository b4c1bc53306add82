package commands

import (
	"github.com/spf13/cobra"

	"github.com/airchains-network/txpipe/contract"
)

// InvokeCmd represents the invoke command
var InvokeCmd = &cobra.Command{
	Use:   "invoke <contract> <address> <function> [args...]",
	Short: "Send a contract call as a transaction and wait for the receipt",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return invokeCommand(cmd, args)
	},
}

func init() {
	sourceFlags(InvokeCmd)
	gasFlags(InvokeCmd)
}

func invokeCommand(cmd *cobra.Command, args []string) error {
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

	c, values, err := resolveCall(cmd, e, args)
	if err != nil {
		return err
	}
	key, err := e.signer(cmd)
	if err != nil {
		return err
	}

	e.log.Infof("Invoking %s.%s", c, args[2])
	receipt, err := contract.NewInvoker(e.pipe).Invoke(ctx, c, args[2], values, key, gas)
	printReceipt(cmd.OutOrStdout(), receipt)
	return err
}
