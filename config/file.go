package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// RunConfig is the top-level configuration for a single backtest run as
// loaded from a YAML/JSON/TOML file with BACKCAST_* environment
// overrides, mirroring the load pattern used for the bot's own runtime
// config elsewhere in the pack.
type RunConfig struct {
	DataPath string         `mapstructure:"data_path"`
	Symbol   string         `mapstructure:"symbol"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Strategy StrategyParams `mapstructure:"strategy"`
}

// LoadRunConfig reads a run config from path, applying BACKCAST_*
// environment variable overrides for any nested key (dots become
// underscores, e.g. BACKCAST_BROKER_CASH overrides broker.cash).
func LoadRunConfig(path string) (*RunConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("BACKCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := RunConfig{
		Broker:   DefaultBrokerConfig(),
		Strategy: DefaultStrategyParams(),
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the run config's nested Broker and Strategy configs
// and the required top-level fields.
func (c *RunConfig) Validate() error {
	if c.DataPath == "" {
		return fmt.Errorf("data_path is required")
	}
	if err := c.Broker.Validate(); err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	if err := c.Strategy.Validate(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	return nil
}
