package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/RaghavSood/ccrouter/swaps"
)

type Config struct {
	// BIP39 mnemonic for wallet derivation
	Mnemonic string `mapstructure:"mnemonic"`

	// Account index on m/44'/60'/0'/0
	AccountIndex uint32 `mapstructure:"account_index"`

	// Path to SQLite database
	DatabasePath string `mapstructure:"database_path"`

	// RPC endpoints keyed by blockchain name
	RPCEndpoints map[string]string `mapstructure:"rpc_endpoints"`

	// HTTP server port (default 8080)
	Port int `mapstructure:"port"`

	// Password for the /api/admin endpoints. Empty disables them.
	AdminPassword string `mapstructure:"admin_password"`

	LogLevel string `mapstructure:"log_level"`

	// Default slippage tolerance as a fraction
	Slippage float64 `mapstructure:"slippage"`

	// Per-provider calculation budget
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`

	// How often the tracker polls pending trades
	TrackerInterval time.Duration `mapstructure:"tracker_interval"`

	// Providers marked dangerous at startup
	DangerousProviders []string `mapstructure:"dangerous_providers"`

	// Providers never queried
	DisabledProviders []string `mapstructure:"disabled_providers"`

	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Providers ProvidersConfig `mapstructure:"providers"`
}

// TelegramConfig enables tracker notifications when Token is set.
type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

// RelayConfig enables cross-chain notifications when Endpoint is set.
type RelayConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
}

type ProvidersConfig struct {
	Thorchain   EndpointConfig `mapstructure:"thorchain"`
	NearIntents KeyedConfig    `mapstructure:"nearintents"`
	SimpleSwap  KeyedConfig    `mapstructure:"simpleswap"`
	Houdini     HoudiniConfig  `mapstructure:"houdini"`
	CowSwap     EndpointConfig `mapstructure:"cowswap"`
}

// EndpointConfig overrides a provider's API base URL. Empty uses the default.
type EndpointConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type KeyedConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type HoudiniConfig struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	BaseURL   string `mapstructure:"base_url"`
	Anonymous bool   `mapstructure:"anonymous"`
}

var defaults = map[string]interface{}{
	"mnemonic":                       "",
	"account_index":                  0,
	"database_path":                  "ccrouter.db",
	"port":                           8080,
	"admin_password":                 "",
	"log_level":                      "info",
	"slippage":                       0.03,
	"provider_timeout":               swaps.DefaultTimeout,
	"tracker_interval":               15 * time.Second,
	"dangerous_providers":            []string{},
	"disabled_providers":             []string{},
	"telegram.token":                 "",
	"telegram.chat_id":               0,
	"relay.endpoint":                 "",
	"relay.api_key":                  "",
	"providers.thorchain.base_url":   "",
	"providers.nearintents.api_key":  "",
	"providers.nearintents.base_url": "",
	"providers.simpleswap.api_key":   "",
	"providers.simpleswap.base_url":  "",
	"providers.houdini.api_key":      "",
	"providers.houdini.api_secret":   "",
	"providers.houdini.base_url":     "",
	"providers.houdini.anonymous":    false,
	"providers.cowswap.base_url":     "",
}

// Load reads the config file at path (JSON or YAML, by extension) and
// applies CCROUTER_* environment overrides, e.g. CCROUTER_MNEMONIC or
// CCROUTER_PROVIDERS_HOUDINI_API_KEY. An empty path reads the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("CCROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Mnemonic == "" {
		return fmt.Errorf("mnemonic is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	if c.Slippage <= 0 || c.Slippage >= 1 {
		return fmt.Errorf("slippage must be between 0 and 1")
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("provider_timeout must be positive")
	}
	for name := range c.RPCEndpoints {
		chain, err := swaps.ParseBlockchain(name)
		if err != nil {
			return fmt.Errorf("rpc_endpoints: %w", err)
		}
		if !chain.IsEVM() {
			return fmt.Errorf("rpc_endpoints: %s is not an EVM chain", chain)
		}
	}
	for _, list := range [][]string{c.DangerousProviders, c.DisabledProviders} {
		for _, p := range list {
			if _, err := ParseProvider(p); err != nil {
				return err
			}
		}
	}
	if c.Providers.Houdini.APIKey != "" && c.Providers.Houdini.APISecret == "" {
		return fmt.Errorf("providers.houdini.api_secret is required with api_key")
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	return nil
}

// Dangerous returns the configured dangerous provider set.
func (c *Config) Dangerous() []swaps.ProviderType {
	return providerList(c.DangerousProviders)
}

// Disabled returns the providers requests should skip.
func (c *Config) Disabled() map[swaps.ProviderType]bool {
	out := map[swaps.ProviderType]bool{}
	for _, p := range providerList(c.DisabledProviders) {
		out[p] = true
	}
	return out
}

// ParseProvider validates a provider name.
func ParseProvider(s string) (swaps.ProviderType, error) {
	p := swaps.ProviderType(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case swaps.ProviderThorchain, swaps.ProviderNearIntents, swaps.ProviderSimpleSwap, swaps.ProviderHoudini, swaps.ProviderCowSwap:
		return p, nil
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

func providerList(names []string) []swaps.ProviderType {
	out := make([]swaps.ProviderType, 0, len(names))
	for _, n := range names {
		if p, err := ParseProvider(n); err == nil {
			out = append(out, p)
		}
	}
	return out
}

var explorers = map[swaps.Blockchain]string{
	swaps.Ethereum:  "https://etherscan.io/tx/",
	swaps.Base:      "https://basescan.org/tx/",
	swaps.Avalanche: "https://snowtrace.io/tx/",
	swaps.BSC:       "https://bscscan.com/tx/",
	swaps.Arbitrum:  "https://arbiscan.io/tx/",
	swaps.Polygon:   "https://polygonscan.com/tx/",
}

// ExplorerTxURL links a source transaction on its chain's block explorer.
func (c *Config) ExplorerTxURL(chain, txHash string) string {
	b, err := swaps.ParseBlockchain(chain)
	if err != nil {
		return ""
	}
	base, ok := explorers[b]
	if !ok {
		return ""
	}
	return base + txHash
}
