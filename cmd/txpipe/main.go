package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/airchains-network/txpipe/cmd/txpipe/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "txpipe",
		Short: "Build, sign, submit and track transactions on an Ethereum-compatible chain",
		Long: `txpipe drives value transfers and contract calls through a local signing pipeline.
Keys never leave the process; the node only sees signed raw transactions.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "config file (default ~/.txpipe/config.toml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")

	rootCmd.AddCommand(commands.InitCmd)
	rootCmd.AddCommand(commands.BalanceCmd)
	rootCmd.AddCommand(commands.TransferCmd)
	rootCmd.AddCommand(commands.ReceiptCmd)
	rootCmd.AddCommand(commands.ContractsCmd)
	rootCmd.AddCommand(commands.CallCmd)
	rootCmd.AddCommand(commands.InvokeCmd)
	rootCmd.AddCommand(commands.ServeCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
