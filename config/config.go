// Copyright (c) 2024 The PayRoute developers
// Use of this source code is governed by an MIT-style license
// that can be found in the LICENSE file.

// Package config loads node configuration from a TOML file and PAYROUTE_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PAYROUTE_FEE_BPS.
const EnvPrefix = "PAYROUTE"

// Config is the node configuration. Addresses are 0x-prefixed hex.
type Config struct {
	DataDir   string `mapstructure:"datadir" validate:"required"`
	Network   string `mapstructure:"network" validate:"oneof=mainnet testnet devnet"`
	LogLevel  string `mapstructure:"loglevel"`
	LogFormat string `mapstructure:"logformat" validate:"oneof=console json"`

	Owner           string `mapstructure:"owner" validate:"required,eth_addr"`
	RegistryAddress string `mapstructure:"registry" validate:"required,eth_addr"`
	RouterAddress   string `mapstructure:"router" validate:"required,eth_addr"`
	WrappedNative   string `mapstructure:"wrapped_native" validate:"omitempty,eth_addr"`
	SwapAdapter     string `mapstructure:"swap_adapter" validate:"omitempty,eth_addr"`

	FeeRecipient string `mapstructure:"fee_recipient" validate:"omitempty,eth_addr"`
	FeeBps       uint16 `mapstructure:"fee_bps" validate:"lte=100"`

	DNSUpstream string `mapstructure:"dns_upstream" validate:"omitempty,hostname_port"`
}

// DefaultConfig returns a devnet configuration with the standard local
// deployment addresses.
func DefaultConfig() Config {
	return Config{
		DataDir:         DefaultDataDir(),
		Network:         "devnet",
		LogLevel:        "info",
		LogFormat:       "console",
		Owner:           "0x000000000000000000000000000000000000a000",
		RegistryAddress: "0x000000000000000000000000000000000000a001",
		RouterAddress:   "0x000000000000000000000000000000000000a002",
		WrappedNative:   "0x000000000000000000000000000000000000a003",
	}
}

// DefaultDataDir returns ~/.payroute, or .payroute when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".payroute"
	}
	return filepath.Join(home, ".payroute")
}

// ConfigPath returns the configuration file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config.toml")
}

// LoadConfig reads the TOML file at path over the defaults, then applies
// PAYROUTE_* environment overrides. An empty path loads defaults and
// environment only.
func LoadConfig(path string) (Config, error) {
	v := newViper(DefaultConfig())

	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as TOML, creating parent directories.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	v := viper.New()
	v.SetConfigType("toml")
	for key, val := range values(cfg) {
		v.Set(key, val)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func newViper(defaults Config) *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees env overrides for keys viper already knows.
	for key, val := range values(defaults) {
		v.SetDefault(key, val)
	}
	return v
}

func values(cfg Config) map[string]interface{} {
	return map[string]interface{}{
		"datadir":        cfg.DataDir,
		"network":        cfg.Network,
		"loglevel":       cfg.LogLevel,
		"logformat":      cfg.LogFormat,
		"owner":          cfg.Owner,
		"registry":       cfg.RegistryAddress,
		"router":         cfg.RouterAddress,
		"wrapped_native": cfg.WrappedNative,
		"swap_adapter":   cfg.SwapAdapter,
		"fee_recipient":  cfg.FeeRecipient,
		"fee_bps":        cfg.FeeBps,
		"dns_upstream":   cfg.DNSUpstream,
	}
}

// OwnerAddress returns the controller of the registry and router.
func (c Config) OwnerAddress() common.Address { return common.HexToAddress(c.Owner) }

// Registry returns the invoice registry address.
func (c Config) Registry() common.Address { return common.HexToAddress(c.RegistryAddress) }

// Router returns the settlement engine address.
func (c Config) Router() common.Address { return common.HexToAddress(c.RouterAddress) }

// WrappedNativeAddress returns the wrapped-native token address, or the zero
// address when native settlement is disabled.
func (c Config) WrappedNativeAddress() common.Address { return optionalAddress(c.WrappedNative) }

// SwapAdapterAddress returns the configured swap adapter address, or zero.
func (c Config) SwapAdapterAddress() common.Address { return optionalAddress(c.SwapAdapter) }

// FeeRecipientAddress returns the fee recipient, or zero when fees are disabled.
func (c Config) FeeRecipientAddress() common.Address { return optionalAddress(c.FeeRecipient) }

func optionalAddress(s string) common.Address {
	if s == "" {
		return common.Address{}
	}
	return common.HexToAddress(s)
}
