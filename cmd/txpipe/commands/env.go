package commands

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/airchains-network/txpipe/config"
	"github.com/airchains-network/txpipe/eth"
	"github.com/airchains-network/txpipe/nonce"
	"github.com/airchains-network/txpipe/pipeline"
	"github.com/airchains-network/txpipe/wallet"
)

// env is what every chain-facing command needs
type env struct {
	fs        afero.Fs
	cfg       config.Config
	log       *logrus.Logger
	transport *eth.RPCTransport
	client    *eth.Client
	pipe      *pipeline.Pipeline
}

func newLogger(cmd *cobra.Command) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		ForceColors:     true,
	})
	log.SetOutput(cmd.ErrOrStderr())
	log.SetLevel(logrus.InfoLevel)
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func configPath(cmd *cobra.Command) (string, error) {
	if f := cmd.Flag("config"); f != nil && f.Value.String() != "" {
		return f.Value.String(), nil
	}
	return config.DefaultPath()
}

func loadConfig(cmd *cobra.Command, fs afero.Fs) (config.Config, error) {
	path, err := configPath(cmd)
	if err != nil {
		return config.Config{}, err
	}
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to stat config file: %v", err)
	}
	if !exists {
		return config.Config{}, fmt.Errorf("config file %s not found, run: txpipe init", path)
	}
	cfg, err := config.LoadConfig(fs, path)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// setup loads the configuration and dials the node
func setup(ctx context.Context, cmd *cobra.Command) (*env, error) {
	fs := afero.NewOsFs()
	log := newLogger(cmd)
	cfg, err := loadConfig(cmd, fs)
	if err != nil {
		return nil, err
	}

	poll, _ := cfg.PollInterval()
	timeout, _ := cfg.ReceiptTimeout()
	price, _ := cfg.GasPrice()

	transport, err := eth.Dial(ctx, cfg.General.RPCURL, eth.DialOptions{
		MaxRetries: cfg.General.HTTPRetries,
		RateLimit:  cfg.General.RateLimit,
		Log:        log,
	})
	if err != nil {
		return nil, err
	}
	log.Debugf("Connected to %s", cfg.General.RPCURL)

	client := eth.NewClient(transport, eth.WithPollInterval(poll), eth.WithLogger(log))
	pipe := pipeline.New(client, nonce.NewSequencer(client, log), pipeline.Options{
		ChainID:        cfg.ChainID(),
		GasLimit:       cfg.Gas.Limit,
		CallGasLimit:   cfg.Gas.CallLimit,
		GasPrice:       price,
		ReceiptTimeout: timeout,
	}, log)
	pipe.Subscribe(pipeline.LogObserver(log))

	return &env{fs: fs, cfg: cfg, log: log, transport: transport, client: client, pipe: pipe}, nil
}

func (e *env) Close() {
	e.transport.Close()
}

// signer loads the account key from the configured sources, prompting as a last resort
func (e *env) signer(cmd *cobra.Command) (*wallet.AccountKey, error) {
	secret, err := e.cfg.LoadPrivateKey(e.fs, config.TerminalPrompt(cmd.ErrOrStderr()))
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}
	key, err := wallet.AccountKeyFromHex(secret)
	if err != nil {
		return nil, err
	}
	e.log.Debugf("Signing as %s", key.Address().Hex())
	return key, nil
}

func gasFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64("gas-limit", 0, "gas limit (default from config)")
	cmd.Flags().String("gas-price", "", "gas price in wei (default from config)")
}

func gasOptions(cmd *cobra.Command) (pipeline.GasOptions, error) {
	var gas pipeline.GasOptions
	gas.GasLimit, _ = cmd.Flags().GetUint64("gas-limit")
	raw, _ := cmd.Flags().GetString("gas-price")
	if raw != "" {
		cfg := config.DefaultConfig()
		cfg.Gas.Price = raw
		price, err := cfg.GasPrice()
		if err != nil {
			return gas, err
		}
		gas.GasPrice = price
	}
	return gas, nil
}
