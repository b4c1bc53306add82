package config

import (
	"fmt"
	"math/big"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/spf13/afero"

	"github.com/airchains-network/txpipe/types"
)

const (
	DefaultRPCURL       = "http://127.0.0.1:7545"
	DefaultDirName      = ".txpipe"
	DefaultConfigFile   = "config.toml"
	DefaultKeyEnv       = "TXPIPE_PRIVATE_KEY"
	DefaultListen       = ":8090"
	DefaultSourcesDir   = "contracts"
	defaultPollInterval = "100ms"
	defaultTimeout      = "30s"
)

var ErrInvalidConfig = fmt.Errorf("%w: invalid configuration", types.ErrValidation)

// Config holds the application configuration
type Config struct {
	General  GeneralConfig  `toml:"general"`
	Account  AccountConfig  `toml:"account"`
	Gas      GasConfig      `toml:"gas"`
	Journal  JournalConfig  `toml:"journal"`
	Server   ServerConfig   `toml:"server"`
	Compiler CompilerConfig `toml:"compiler"`
}

// GeneralConfig holds the node connection settings
type GeneralConfig struct {
	RPCURL         string  `toml:"rpc_url"`
	ChainID        int64   `toml:"chain_id"`
	PollInterval   string  `toml:"poll_interval"`
	ReceiptTimeout string  `toml:"receipt_timeout"`
	RateLimit      float64 `toml:"rate_limit"`
	HTTPRetries    int     `toml:"http_retries"`
}

// AccountConfig says where the signing key comes from. The key itself is never stored here.
type AccountConfig struct {
	PrivateKeyEnv  string `toml:"private_key_env"`
	PrivateKeyFile string `toml:"private_key_file"`
}

type GasConfig struct {
	Limit     uint64 `toml:"limit"`
	CallLimit uint64 `toml:"call_limit"`
	Price     string `toml:"price"`
}

type JournalConfig struct {
	Path string `toml:"path"`
}

type ServerConfig struct {
	Listen string `toml:"listen"`
}

type CompilerConfig struct {
	Solc    string `toml:"solc"`
	Sources string `toml:"sources"`
}

// DefaultConfig returns a configuration for a local development node
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			RPCURL:         DefaultRPCURL,
			ChainID:        0,
			PollInterval:   defaultPollInterval,
			ReceiptTimeout: defaultTimeout,
			HTTPRetries:    3,
		},
		Account: AccountConfig{
			PrivateKeyEnv: DefaultKeyEnv,
		},
		Gas: GasConfig{
			Limit:     21000,
			CallLimit: 200000,
			Price:     "1",
		},
		Journal: JournalConfig{
			Path: filepath.Join("data", "journal"),
		},
		Server: ServerConfig{
			Listen: DefaultListen,
		},
		Compiler: CompilerConfig{
			Solc:    "solc",
			Sources: DefaultSourcesDir,
		},
	}
}

// DefaultPath is ~/.txpipe/config.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %v", err)
	}
	return filepath.Join(home, DefaultDirName, DefaultConfigFile), nil
}

// LoadConfig reads path on fs. Keys missing from the file keep their defaults.
func LoadConfig(fs afero.Fs, path string) (Config, error) {
	cfg := DefaultConfig()
	file, err := afero.ReadFile(fs, path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if err := toml.Unmarshal(file, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the configuration to path on fs, creating parent directories
func (c Config) Save(fs afero.Fs, path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %v", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %v", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %v", err)
	}
	return nil
}

// Validate checks every value that is parsed later
func (c Config) Validate() error {
	u, err := url.Parse(c.General.RPCURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: rpc_url %q", ErrInvalidConfig, c.General.RPCURL)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("%w: rpc_url scheme %q", ErrInvalidConfig, u.Scheme)
	}
	if c.General.ChainID < 0 {
		return fmt.Errorf("%w: chain_id must not be negative", ErrInvalidConfig)
	}
	if _, err := c.PollInterval(); err != nil {
		return err
	}
	if _, err := c.ReceiptTimeout(); err != nil {
		return err
	}
	if c.General.RateLimit < 0 || c.General.HTTPRetries < 0 {
		return fmt.Errorf("%w: rate_limit and http_retries must not be negative", ErrInvalidConfig)
	}
	if c.Gas.Limit == 0 || c.Gas.CallLimit == 0 {
		return fmt.Errorf("%w: gas limits must be positive", ErrInvalidConfig)
	}
	if _, err := c.GasPrice(); err != nil {
		return err
	}
	return nil
}

func (c Config) PollInterval() (time.Duration, error) {
	return positiveDuration("poll_interval", c.General.PollInterval)
}

func (c Config) ReceiptTimeout() (time.Duration, error) {
	return positiveDuration("receipt_timeout", c.General.ReceiptTimeout)
}

// ChainID is nil when replay protection is disabled
func (c Config) ChainID() *big.Int {
	if c.General.ChainID <= 0 {
		return nil
	}
	return big.NewInt(c.General.ChainID)
}

// GasPrice parses the configured price in wei
func (c Config) GasPrice() (*big.Int, error) {
	price, ok := new(big.Int).SetString(strings.TrimSpace(c.Gas.Price), 10)
	if !ok || price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: gas price %q", ErrInvalidConfig, c.Gas.Price)
	}
	return price, nil
}

func positiveDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidConfig, key, raw)
	}
	return d, nil
}
