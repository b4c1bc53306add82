package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/airchains-network/txpipe/config"
)

// InitCmd represents the init command
var InitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file",
	Long: `Write ~/.txpipe/config.toml (or --config) with defaults for a local development node.
The private key is never written; point private_key_env or private_key_file at it instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand(cmd, afero.NewOsFs())
	},
}

func init() {
	initFlags(InitCmd)
}

func initFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc-url", config.DefaultRPCURL, "node JSON-RPC endpoint (http, https, ws or wss)")
	cmd.Flags().Int64("chain-id", 0, "chain ID for replay protection, 0 signs without it")
	cmd.Flags().String("key-env", config.DefaultKeyEnv, "environment variable holding the hex private key")
	cmd.Flags().String("key-file", "", "file holding the hex private key")
	cmd.Flags().String("listen", config.DefaultListen, "listen address of the serve command")
	cmd.Flags().Bool("force", false, "overwrite an existing config file")
}

func initCommand(cmd *cobra.Command, fs afero.Fs) error {
	rpcURL, _ := cmd.Flags().GetString("rpc-url")
	chainID, _ := cmd.Flags().GetInt64("chain-id")
	keyEnv, _ := cmd.Flags().GetString("key-env")
	keyFile, _ := cmd.Flags().GetString("key-file")
	listen, _ := cmd.Flags().GetString("listen")
	force, _ := cmd.Flags().GetBool("force")

	log := newLogger(cmd)

	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	if exists, _ := afero.Exists(fs, path); exists && !force {
		return fmt.Errorf("config file %s already exists, use --force to overwrite", path)
	}

	cfg := config.DefaultConfig()
	cfg.General.RPCURL = rpcURL
	cfg.General.ChainID = chainID
	cfg.Account.PrivateKeyEnv = keyEnv
	cfg.Account.PrivateKeyFile = keyFile
	cfg.Server.Listen = listen
	cfg.Journal.Path = filepath.Join(filepath.Dir(path), "data", "journal")
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := cfg.Save(fs, path); err != nil {
		return fmt.Errorf("failed to create config file: %v", err)
	}
	log.Infof("Created config file at: %s", path)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\n=== Configuration Summary ===")
	fmt.Fprintf(out, "RPC URL: %s\n", cfg.General.RPCURL)
	fmt.Fprintf(out, "Chain ID: %d\n", cfg.General.ChainID)
	fmt.Fprintf(out, "Key Env: %s\n", cfg.Account.PrivateKeyEnv)
	if cfg.Account.PrivateKeyFile != "" {
		fmt.Fprintf(out, "Key File: %s\n", cfg.Account.PrivateKeyFile)
	}
	fmt.Fprintf(out, "Journal: %s\n", cfg.Journal.Path)
	fmt.Fprintf(out, "Listen: %s\n", cfg.Server.Listen)
	fmt.Fprintf(out, "Config File: %s\n", path)
	return nil
}
