package commands

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/airchains-network/txpipe/eth"
)

// ReceiptCmd represents the receipt command
var ReceiptCmd = &cobra.Command{
	Use:   "receipt <hash>",
	Short: "Wait for and print a transaction receipt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return receiptCommand(cmd, args[0])
	},
}

func init() {
	ReceiptCmd.Flags().Duration("timeout", 0, "how long to wait (default receipt_timeout from config)")
}

func receiptCommand(cmd *cobra.Command, raw string) error {
	b, err := hexutil.Decode(raw)
	if err != nil || len(b) != common.HashLength {
		return fmt.Errorf("invalid transaction hash %q", raw)
	}

	ctx := cmd.Context()
	e, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = e.pipe.Options().ReceiptTimeout
	}

	handle := eth.PendingHandle{Hash: common.BytesToHash(b), SubmittedAt: time.Now()}
	receipt, err := e.client.AwaitReceipt(ctx, handle, timeout)
	if receipt != nil {
		printReceipt(cmd.OutOrStdout(), receipt)
	}
	return err
}
