// Package config loads the daemon configuration from a TOML file and fills
// in sane defaults for anything omitted.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Config is the top-level daemon configuration.
type Config struct {
	RPCAddress string `toml:"RPCAddress"`
	DataDir    string `toml:"DataDir"`
	LogLevel   string `toml:"LogLevel"`
	LogFile    string `toml:"LogFile"`

	Owner string `toml:"Owner"`

	Sale     SaleConfig     `toml:"Sale"`
	Referral ReferralConfig `toml:"Referral"`
	Staking  StakingConfig  `toml:"Staking"`
	Oracle   OracleConfig   `toml:"Oracle"`
}

// SaleConfig fixes the token economics. Big amounts are decimal strings in
// base units.
type SaleConfig struct {
	TotalSupply        string `toml:"TotalSupply"`
	MinTokensToBuy     string `toml:"MinTokensToBuy"`
	TokenDecimals      uint8  `toml:"TokenDecimals"`
	StableDecimals     uint8  `toml:"StableDecimals"`
	NativeDecimals     uint8  `toml:"NativeDecimals"`
	SaleTokenAddress   string `toml:"SaleTokenAddress"`
	StableTokenAddress string `toml:"StableTokenAddress"`
	ReserveAccount     string `toml:"ReserveAccount"`
}

// ReferralConfig tunes the referral program.
type ReferralConfig struct {
	RewardPercent   uint32 `toml:"RewardPercent"`
	MinimumPurchase string `toml:"MinimumPurchase"`
}

// StakingConfig tunes the staking pool.
type StakingConfig struct {
	ApyPercent uint32 `toml:"ApyPercent"`
	Cap        string `toml:"Cap"`
	Active     bool   `toml:"Active"`
}

// OracleConfig tunes the native price feed.
type OracleConfig struct {
	MaxAgeSeconds uint64   `toml:"MaxAgeSeconds"`
	FeedURLs      []string `toml:"FeedURLs"`
	// ManualPrice seeds a static quote when no feed is configured. Decimal
	// string scaled by ManualDecimals.
	ManualPrice    string `toml:"ManualPrice"`
	ManualDecimals uint8  `toml:"ManualDecimals"`
}

// Load reads the config at path, writing a default file first if none
// exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8545"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./sale-data"
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = "info"
	}
	if c.Sale.TokenDecimals == 0 {
		c.Sale.TokenDecimals = 18
	}
	if c.Sale.StableDecimals == 0 {
		c.Sale.StableDecimals = 6
	}
	if c.Sale.NativeDecimals == 0 {
		c.Sale.NativeDecimals = 18
	}
	if c.Referral.RewardPercent == 0 {
		c.Referral.RewardPercent = 20
	}
	if c.Staking.ApyPercent == 0 {
		c.Staking.ApyPercent = 200
	}
	if c.Oracle.MaxAgeSeconds == 0 {
		c.Oracle.MaxAgeSeconds = 300
	}
	if c.Oracle.ManualDecimals == 0 {
		c.Oracle.ManualDecimals = 8
	}
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if _, err := c.OwnerAddress(); err != nil {
		return err
	}
	if _, err := parseAmount("Sale.TotalSupply", c.Sale.TotalSupply, true); err != nil {
		return err
	}
	if _, err := parseAmount("Sale.MinTokensToBuy", c.Sale.MinTokensToBuy, false); err != nil {
		return err
	}
	if _, err := parseAmount("Referral.MinimumPurchase", c.Referral.MinimumPurchase, false); err != nil {
		return err
	}
	if _, err := parseAmount("Staking.Cap", c.Staking.Cap, false); err != nil {
		return err
	}
	if c.Referral.RewardPercent > 100 {
		return fmt.Errorf("config: Referral.RewardPercent above 100")
	}
	return nil
}

// OwnerAddress parses the configured owner address.
func (c *Config) OwnerAddress() (common.Address, error) {
	if !common.IsHexAddress(c.Owner) {
		return common.Address{}, fmt.Errorf("config: Owner is not a valid address")
	}
	return common.HexToAddress(c.Owner), nil
}

// Amount parses one of the decimal-string amount fields.
func Amount(field, value string) (*big.Int, error) {
	return parseAmount(field, value, false)
}

func parseAmount(field, value string, required bool) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		if required {
			return nil, fmt.Errorf("config: %s required", field)
		}
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("config: %s is not a valid amount", field)
	}
	return amount, nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress: ":8545",
		DataDir:    "./sale-data",
		LogLevel:   "info",
		Owner:      common.Address{}.Hex(),
		Sale: SaleConfig{
			TotalSupply:    "1000000000000000000000000000",
			MinTokensToBuy: "10000000000000000000",
			TokenDecimals:  18,
			StableDecimals: 6,
			NativeDecimals: 18,
		},
		Referral: ReferralConfig{
			RewardPercent:   20,
			MinimumPurchase: "1000000000000000000000",
		},
		Staking: StakingConfig{
			ApyPercent: 200,
			Cap:        "200000000000000000000000000",
			Active:     true,
		},
		Oracle: OracleConfig{
			MaxAgeSeconds:  300,
			ManualPrice:    "300000000000",
			ManualDecimals: 8,
		},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
