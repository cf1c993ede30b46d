package extension

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the pull payment extension configuration.
// Fields can be set programmatically via Option functions, loaded by Forge
// under the "extensions.pullpay" or "pullpay" keys, or read from a standalone
// YAML file with LoadConfigFile.
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// TokenDecimals is the number of decimals of the ledger unit (default: 18).
	TokenDecimals uint8 `json:"token_decimals" mapstructure:"token_decimals" yaml:"token_decimals"`

	// SigningDomain binds payer signatures to one deployment. Empty keeps the
	// engine default.
	SigningDomain string `json:"signing_domain" mapstructure:"signing_domain" yaml:"signing_domain"`

	// DisableKeeper stops the extension from running the recurring keeper.
	DisableKeeper bool `json:"disable_keeper" mapstructure:"disable_keeper" yaml:"disable_keeper"`

	// KeeperInterval is the time between keeper sweeps (default: 1m).
	KeeperInterval time.Duration `json:"keeper_interval" mapstructure:"keeper_interval" yaml:"keeper_interval"`

	// KeeperBatchSize is the page size used to list due plans (default: 100).
	KeeperBatchSize int `json:"keeper_batch_size" mapstructure:"keeper_batch_size" yaml:"keeper_batch_size"`

	// KeeperRatePerSecond caps keeper executions per second (default: 20).
	KeeperRatePerSecond float64 `json:"keeper_rate_per_second" mapstructure:"keeper_rate_per_second" yaml:"keeper_rate_per_second"`

	// KeeperBurst is the keeper's token bucket size (default: 5).
	KeeperBurst int `json:"keeper_burst" mapstructure:"keeper_burst" yaml:"keeper_burst"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TokenDecimals:       18,
		KeeperInterval:      time.Minute,
		KeeperBatchSize:     100,
		KeeperRatePerSecond: 20,
		KeeperBurst:         5,
	}
}

// LoadConfigFile reads a Config from a YAML file. Zero fields are left for
// the extension to fill with defaults.
func LoadConfigFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("pullpay: read config %s: %w", path, err)
	}

	var doc struct {
		Config  `yaml:",inline"`
		Pullpay *Config `yaml:"pullpay"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Config{}, fmt.Errorf("pullpay: parse config %s: %w", path, err)
	}
	if doc.Pullpay != nil {
		return *doc.Pullpay, nil
	}
	return doc.Config, nil
}

// withDefaults fills zero-valued fields with defaults.
func withDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.TokenDecimals == 0 {
		cfg.TokenDecimals = defaults.TokenDecimals
	}
	if cfg.KeeperInterval == 0 {
		cfg.KeeperInterval = defaults.KeeperInterval
	}
	if cfg.KeeperBatchSize == 0 {
		cfg.KeeperBatchSize = defaults.KeeperBatchSize
	}
	if cfg.KeeperRatePerSecond == 0 {
		cfg.KeeperRatePerSecond = defaults.KeeperRatePerSecond
	}
	if cfg.KeeperBurst == 0 {
		cfg.KeeperBurst = defaults.KeeperBurst
	}
	return cfg
}

// mergeConfigurations merges file config with programmatic options.
// File config takes precedence; programmatic values fill gaps.
func mergeConfigurations(fileConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		fileConfig.DisableMigrate = true
	}
	if programmaticConfig.DisableKeeper {
		fileConfig.DisableKeeper = true
	}

	if fileConfig.SigningDomain == "" {
		fileConfig.SigningDomain = programmaticConfig.SigningDomain
	}
	if fileConfig.TokenDecimals == 0 {
		fileConfig.TokenDecimals = programmaticConfig.TokenDecimals
	}
	if fileConfig.KeeperInterval == 0 {
		fileConfig.KeeperInterval = programmaticConfig.KeeperInterval
	}
	if fileConfig.KeeperBatchSize == 0 {
		fileConfig.KeeperBatchSize = programmaticConfig.KeeperBatchSize
	}
	if fileConfig.KeeperRatePerSecond == 0 {
		fileConfig.KeeperRatePerSecond = programmaticConfig.KeeperRatePerSecond
	}
	if fileConfig.KeeperBurst == 0 {
		fileConfig.KeeperBurst = programmaticConfig.KeeperBurst
	}

	return withDefaults(fileConfig)
}
