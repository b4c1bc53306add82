package commands

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/airchains-network/txpipe/compiler"
	"github.com/airchains-network/txpipe/config"
	"github.com/airchains-network/txpipe/types"
)

// ContractsCmd represents the contracts command
var ContractsCmd = &cobra.Command{
	Use:   "contracts",
	Short: "Compile the contract sources and list their functions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return contractsCommand(cmd)
	},
}

func init() {
	sourceFlags(ContractsCmd)
}

func sourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("sources", "", "directory of .sol files (default compiler.sources from config)")
	cmd.Flags().String("combined", "", "precompiled solc --combined-json output, skips compilation")
}

func contractsCommand(cmd *cobra.Command) error {
	fs := afero.NewOsFs()
	log := newLogger(cmd)
	cfg, err := loadConfig(cmd, fs)
	if err != nil {
		return err
	}

	artifacts, err := loadArtifacts(cmd, fs, cfg, log)
	if err != nil {
		return err
	}
	for _, a := range artifacts {
		fmt.Fprintln(cmd.OutOrStdout(), a.String())
	}
	return nil
}

func loadArtifacts(cmd *cobra.Command, fs afero.Fs, cfg config.Config, log *logrus.Logger) ([]*types.ContractArtifact, error) {
	if combined, _ := cmd.Flags().GetString("combined"); combined != "" {
		data, err := afero.ReadFile(fs, combined)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %v", combined, err)
		}
		return compiler.Parse(data)
	}

	dir, _ := cmd.Flags().GetString("sources")
	if dir == "" {
		dir = cfg.Compiler.Sources
	}
	artifacts, err := compiler.New(fs, cfg.Compiler.Solc, log).Compile(cmd.Context(), dir)
	if err != nil {
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			for _, d := range ce.Diagnostics {
				fmt.Fprintln(cmd.ErrOrStderr(), d)
			}
		}
		return nil, err
	}
	return artifacts, nil
}
