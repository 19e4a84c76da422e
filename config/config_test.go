// Copyright (c) 2024 The PayRoute developers
// Use of this source code is governed by an MIT-style license
// that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// DefaultConfig tests
// ---------------------------------------------------------------------------

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"Network", cfg.Network, "devnet"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFormat", cfg.LogFormat, "console"},
		{"FeeBps", cfg.FeeBps, uint16(0)},
		{"SwapAdapter", cfg.SwapAdapter, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.got)
		})
	}

	assert.NotEmpty(t, cfg.DataDir)
	assert.NoError(t, ValidateConfig(cfg))
}

func TestDefaultDataDir_EndsWith_DotPayroute(t *testing.T) {
	assert.True(t, strings.HasSuffix(DefaultDataDir(), ".payroute"))
}

func TestConfigPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/home/user/.payroute", "config.toml"), ConfigPath("/home/user/.payroute"))
	assert.Equal(t, filepath.Join("/foo", "config.toml"), ConfigPath("/foo/"))
}

// ---------------------------------------------------------------------------
// SaveConfig / LoadConfig round-trip tests
// ---------------------------------------------------------------------------

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	original := Config{
		DataDir:         "/tmp/test-payroute",
		Network:         "testnet",
		LogLevel:        "debug",
		LogFormat:       "json",
		Owner:           "0x00000000000000000000000000000000000000f0",
		RegistryAddress: "0x0000000000000000000000000000000000001001",
		RouterAddress:   "0x0000000000000000000000000000000000001002",
		WrappedNative:   "0x0000000000000000000000000000000000001003",
		SwapAdapter:     "0x0000000000000000000000000000000000001004",
		FeeRecipient:    "0x00000000000000000000000000000000000000fe",
		FeeBps:          50,
		DNSUpstream:     "1.1.1.1:53",
	}

	require.NoError(t, SaveConfig(path, original))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestSaveConfigCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "config.toml")

	require.NoError(t, SaveConfig(path, DefaultConfig()))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestSaveConfig_OutputContainsAllKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveConfig(path, DefaultConfig()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for key := range values(DefaultConfig()) {
		assert.Contains(t, string(data), key, "saved config should contain key %q", key)
	}
}

// ---------------------------------------------------------------------------
// LoadConfig tests
// ---------------------------------------------------------------------------

func TestLoadConfigNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.toml")
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `# partial
network = "testnet"
loglevel = "debug"
fee_bps = 25
fee_recipient = "0x00000000000000000000000000000000000000fe"
futurekey = "ignored"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "testnet", cfg.Network)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, uint16(25), cfg.FeeBps)
	assert.Equal(t, DefaultConfig().RouterAddress, cfg.RouterAddress)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.NoError(t, ValidateConfig(cfg))
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("this is = = not toml\n"), 0600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConfigNotFound)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("network = \"testnet\"\n"), 0600))

	t.Setenv("PAYROUTE_NETWORK", "mainnet")
	t.Setenv("PAYROUTE_FEE_BPS", "40")
	t.Setenv("PAYROUTE_FEE_RECIPIENT", "0x00000000000000000000000000000000000000fe")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "mainnet", cfg.Network)
	assert.Equal(t, uint16(40), cfg.FeeBps)
	assert.Equal(t, common.HexToAddress("0xfe"), cfg.FeeRecipientAddress())
}

func TestLoadConfigEmptyPathUsesEnv(t *testing.T) {
	t.Setenv("PAYROUTE_LOGFORMAT", "json")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, DefaultConfig().Owner, cfg.Owner)
}

func TestLoadConfig_PermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission test not reliable on Windows")
	}
	if os.Getuid() == 0 {
		t.Skip("cannot test permission denial as root")
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("network = \"testnet\"\n"), 0600))
	require.NoError(t, os.Chmod(path, 0000))
	t.Cleanup(func() { os.Chmod(path, 0600) })

	_, err := LoadConfig(path)
	require.Error(t, err)
	// The file exists, so this is not a not-found error.
	assert.NotErrorIs(t, err, ErrConfigNotFound)
}

// ---------------------------------------------------------------------------
// ValidateConfig tests
// ---------------------------------------------------------------------------

func TestValidateConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{"empty_datadir", func(c *Config) { c.DataDir = "" }, ErrEmptyDataDir},
		{"bad_network", func(c *Config) { c.Network = "regtest" }, ErrInvalidNetwork},
		{"empty_network", func(c *Config) { c.Network = "" }, ErrInvalidNetwork},
		{"bad_loglevel", func(c *Config) { c.LogLevel = "verbose" }, ErrInvalidLogLevel},
		{"bad_logformat", func(c *Config) { c.LogFormat = "xml" }, ErrInvalidLogFormat},
		{"missing_owner", func(c *Config) { c.Owner = "" }, ErrInvalidAddress},
		{"short_router", func(c *Config) { c.RouterAddress = "0x1234" }, ErrInvalidAddress},
		{"bad_swap_adapter", func(c *Config) { c.SwapAdapter = "adapter" }, ErrInvalidAddress},
		{"fee_too_high", func(c *Config) {
			c.FeeRecipient = "0x00000000000000000000000000000000000000fe"
			c.FeeBps = 101
		}, ErrFeeTooHigh},
		{"fee_without_recipient", func(c *Config) { c.FeeBps = 10 }, ErrInvalidAddress},
		{"bad_dns_upstream", func(c *Config) { c.DNSUpstream = "no port" }, ErrInvalidDNSUpstream},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			assert.ErrorIs(t, ValidateConfig(cfg), tc.wantErr)
		})
	}
}

func TestValidateConfig_Accepts(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"mainnet", func(c *Config) { c.Network = "mainnet" }},
		{"testnet", func(c *Config) { c.Network = "testnet" }},
		{"loglevel mixed case", func(c *Config) { c.LogLevel = "Debug" }},
		{"loglevel upper", func(c *Config) { c.LogLevel = "WARN" }},
		{"json", func(c *Config) { c.LogFormat = "json" }},
		{"max fee", func(c *Config) {
			c.FeeRecipient = "0x00000000000000000000000000000000000000fe"
			c.FeeBps = 100
		}},
		{"no wrapped native", func(c *Config) { c.WrappedNative = "" }},
		{"dns upstream", func(c *Config) { c.DNSUpstream = "8.8.8.8:53" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			assert.NoError(t, ValidateConfig(cfg))
		})
	}
}

func TestAddressAccessors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, common.HexToAddress("0xa000"), cfg.OwnerAddress())
	assert.Equal(t, common.HexToAddress("0xa001"), cfg.Registry())
	assert.Equal(t, common.HexToAddress("0xa002"), cfg.Router())
	assert.Equal(t, common.HexToAddress("0xa003"), cfg.WrappedNativeAddress())
	assert.Equal(t, common.Address{}, cfg.SwapAdapterAddress())
	assert.Equal(t, common.Address{}, cfg.FeeRecipientAddress())
}
