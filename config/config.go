package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"loanchain/crypto"
)

// Config is the node's on-disk configuration.
type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	MetricsAddress string `toml:"MetricsAddress"`
	DataDir        string `toml:"DataDir"`
	NetworkName    string `toml:"NetworkName"`

	// AdminAddress is written into the protocol parameters on first start.
	// Later changes go through the admin RPC surface, not the config file.
	AdminAddress       string `toml:"AdminAddress"`
	FeeTreasuryAddress string `toml:"FeeTreasuryAddress"`
	ProcessingFeeBps   uint64 `toml:"ProcessingFeeBps"`
	InterestFeeBps     uint64 `toml:"InterestFeeBps"`
}

// Load reads the configuration at path, creating a default file if none
// exists yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8080"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./loan-data"
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = "loan-local"
	}
}

// Validate checks the fields the node cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AdminAddress) == "" {
		return fmt.Errorf("AdminAddress is required")
	}
	if _, err := crypto.DecodeAddress(c.AdminAddress); err != nil {
		return fmt.Errorf("invalid AdminAddress: %w", err)
	}
	if strings.TrimSpace(c.FeeTreasuryAddress) == "" {
		return fmt.Errorf("FeeTreasuryAddress is required")
	}
	if _, err := crypto.DecodeAddress(c.FeeTreasuryAddress); err != nil {
		return fmt.Errorf("invalid FeeTreasuryAddress: %w", err)
	}
	return nil
}

// Admin returns the decoded admin address.
func (c *Config) Admin() (crypto.Address, error) {
	return crypto.DecodeAddress(c.AdminAddress)
}

// FeeTreasury returns the decoded fee treasury address.
func (c *Config) FeeTreasury() (crypto.Address, error) {
	return crypto.DecodeAddress(c.FeeTreasuryAddress)
}

// createDefault writes a commented starter configuration. The generated admin
// key is printed nowhere; operators are expected to replace the placeholder
// addresses before first start, so the default intentionally fails Validate.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:     ":8080",
		MetricsAddress: ":9090",
		DataDir:        "./loan-data",
		NetworkName:    "loan-local",
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
