package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"stakevault/native/vault"
)

type Config struct {
	Service   ServiceConfig   `toml:"Service"`
	Storage   StorageConfig   `toml:"Storage"`
	Vault     VaultConfig     `toml:"Vault"`
	Bank      BankConfig      `toml:"Bank"`
	Auth      AuthConfig      `toml:"Auth"`
	RateLimit RateLimitConfig `toml:"RateLimit"`
}

type ServiceConfig struct {
	ListenAddress string `toml:"ListenAddress"`
	Environment   string `toml:"Environment"`
	LogLevel      string `toml:"LogLevel"`
}

type StorageConfig struct {
	DataDir string `toml:"DataDir"`
}

// VaultConfig carries the bootstrap risk parameters. Ratios are expressed in
// basis points; the interest rate is per second, scaled by 1e12. Amounts are
// decimal strings in debt-token base units.
type VaultConfig struct {
	TreasuryAddress         string `toml:"TreasuryAddress"`
	CustodyAddress          string `toml:"CustodyAddress"`
	MaxLTVBps               uint64 `toml:"MaxLTVBps"`
	LiquidationThresholdBps uint64 `toml:"LiquidationThresholdBps"`
	LiquidationIncentiveBps uint64 `toml:"LiquidationIncentiveBps"`
	CloseFactorBps          uint64 `toml:"CloseFactorBps"`
	InterestRatePerSecond   uint64 `toml:"InterestRatePerSecond"`
	OriginationFeeBps       uint64 `toml:"OriginationFeeBps"`
	DebtCeiling             string `toml:"DebtCeiling"`
}

// BankConfig seeds the in-process collateral rails. The conversion index is
// scaled by 1e18; an index of "1000000000000000000" means one share redeems
// one staked unit.
type BankConfig struct {
	InitialConversionIndex string `toml:"InitialConversionIndex"`
	InitialAssetPrice      string `toml:"InitialAssetPrice"`
}

type AuthConfig struct {
	Enabled          bool   `toml:"Enabled"`
	HMACSecret       string `toml:"HMACSecret"`
	Issuer           string `toml:"Issuer"`
	Audience         string `toml:"Audience"`
	ScopeClaim       string `toml:"ScopeClaim"`
	ClockSkewSeconds int    `toml:"ClockSkewSeconds"`
}

type RateLimitConfig struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
}

// Load reads the configuration from the given path, creating a default file
// when none exists yet.
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
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			ListenAddress: ":8645",
			Environment:   "local",
			LogLevel:      "info",
		},
		Storage: StorageConfig{DataDir: "./vault-data"},
		Vault: VaultConfig{
			TreasuryAddress:         "0x00000000000000000000000000000000000000fe",
			CustodyAddress:          "0x00000000000000000000000000000000000000ff",
			MaxLTVBps:               5000,
			LiquidationThresholdBps: 7500,
			LiquidationIncentiveBps: 500,
			CloseFactorBps:          5000,
			InterestRatePerSecond:   0,
			OriginationFeeBps:       0,
			DebtCeiling:             "1000000000000000000000000",
		},
		Bank: BankConfig{
			InitialConversionIndex: "1000000000000000000",
			InitialAssetPrice:      "100",
		},
		Auth: AuthConfig{
			Enabled:          false,
			ScopeClaim:       "scope",
			ClockSkewSeconds: 120,
		},
		RateLimit: RateLimitConfig{RequestsPerMinute: 600, Burst: 20},
	}
}

func createDefault(path string) (*Config, error) {
	cfg := defaultConfig()
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := defaultConfig()
	if strings.TrimSpace(c.Service.ListenAddress) == "" {
		c.Service.ListenAddress = def.Service.ListenAddress
	}
	if strings.TrimSpace(c.Service.LogLevel) == "" {
		c.Service.LogLevel = def.Service.LogLevel
	}
	if strings.TrimSpace(c.Storage.DataDir) == "" {
		c.Storage.DataDir = def.Storage.DataDir
	}
	if strings.TrimSpace(c.Auth.ScopeClaim) == "" {
		c.Auth.ScopeClaim = def.Auth.ScopeClaim
	}
	if c.Auth.ClockSkewSeconds <= 0 {
		c.Auth.ClockSkewSeconds = def.Auth.ClockSkewSeconds
	}
	if strings.TrimSpace(c.Bank.InitialConversionIndex) == "" {
		c.Bank.InitialConversionIndex = def.Bank.InitialConversionIndex
	}
	if strings.TrimSpace(c.Bank.InitialAssetPrice) == "" {
		c.Bank.InitialAssetPrice = def.Bank.InitialAssetPrice
	}
	if strings.TrimSpace(c.Vault.DebtCeiling) == "" {
		c.Vault.DebtCeiling = def.Vault.DebtCeiling
	}
}

// Validate checks the risk parameters and addresses for internal consistency.
func (c *Config) Validate() error {
	const maxBps = 10_000
	if c.Vault.MaxLTVBps > maxBps {
		return fmt.Errorf("config: MaxLTVBps %d exceeds %d", c.Vault.MaxLTVBps, maxBps)
	}
	if c.Vault.LiquidationThresholdBps > maxBps {
		return fmt.Errorf("config: LiquidationThresholdBps %d exceeds %d", c.Vault.LiquidationThresholdBps, maxBps)
	}
	if c.Vault.MaxLTVBps > c.Vault.LiquidationThresholdBps {
		return fmt.Errorf("config: MaxLTVBps %d above LiquidationThresholdBps %d", c.Vault.MaxLTVBps, c.Vault.LiquidationThresholdBps)
	}
	if c.Vault.CloseFactorBps > maxBps {
		return fmt.Errorf("config: CloseFactorBps %d exceeds %d", c.Vault.CloseFactorBps, maxBps)
	}
	if c.Vault.LiquidationThresholdBps+c.Vault.LiquidationIncentiveBps > maxBps {
		return fmt.Errorf("config: liquidation threshold plus incentive exceeds %d basis points", maxBps)
	}
	if c.Vault.OriginationFeeBps > maxBps {
		return fmt.Errorf("config: OriginationFeeBps %d exceeds %d", c.Vault.OriginationFeeBps, maxBps)
	}
	if _, err := parseAddress(c.Vault.TreasuryAddress); err != nil {
		return fmt.Errorf("config: TreasuryAddress: %w", err)
	}
	if _, err := parseAddress(c.Vault.CustodyAddress); err != nil {
		return fmt.Errorf("config: CustodyAddress: %w", err)
	}
	if _, err := parseAmount(c.Vault.DebtCeiling); err != nil {
		return fmt.Errorf("config: DebtCeiling: %w", err)
	}
	if _, err := parseAmount(c.Bank.InitialConversionIndex); err != nil {
		return fmt.Errorf("config: InitialConversionIndex: %w", err)
	}
	if _, err := parseAmount(c.Bank.InitialAssetPrice); err != nil {
		return fmt.Errorf("config: InitialAssetPrice: %w", err)
	}
	if c.Auth.Enabled && strings.TrimSpace(c.Auth.HMACSecret) == "" {
		return fmt.Errorf("config: Auth.HMACSecret required when auth is enabled")
	}
	return nil
}

func parseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	addr := common.HexToAddress(trimmed)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("address must not be zero")
	}
	return addr, nil
}

func parseAmount(raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return v, nil
}

// TreasuryAddress returns the parsed treasury address. Validate must have
// succeeded first.
func (c *Config) TreasuryAddress() common.Address {
	return common.HexToAddress(strings.TrimSpace(c.Vault.TreasuryAddress))
}

// CustodyAddress returns the parsed collateral custody address.
func (c *Config) CustodyAddress() common.Address {
	return common.HexToAddress(strings.TrimSpace(c.Vault.CustodyAddress))
}

// InitialConversionIndex returns the parsed bootstrap conversion index.
func (c *Config) InitialConversionIndex() *big.Int {
	v, _ := parseAmount(c.Bank.InitialConversionIndex)
	return v
}

// InitialAssetPrice returns the parsed bootstrap oracle price.
func (c *Config) InitialAssetPrice() *big.Int {
	v, _ := parseAmount(c.Bank.InitialAssetPrice)
	return v
}

// AuthClockSkew returns the configured clock skew tolerance.
func (c *Config) AuthClockSkew() time.Duration {
	return time.Duration(c.Auth.ClockSkewSeconds) * time.Second
}

// Terms builds the bootstrap global terms from the configured parameters.
func (c *Config) Terms() *vault.GlobalTerms {
	ceiling, _ := parseAmount(c.Vault.DebtCeiling)
	terms := &vault.GlobalTerms{
		MaxLTV:               c.Vault.MaxLTVBps,
		LiquidationThreshold: c.Vault.LiquidationThresholdBps,
		LiquidationIncentive: c.Vault.LiquidationIncentiveBps,
		CloseFactor:          c.Vault.CloseFactorBps,
		InterestRatePerUnit:  new(big.Int).SetUint64(c.Vault.InterestRatePerSecond),
		OriginationFee:       c.Vault.OriginationFeeBps,
		DebtCeiling:          ceiling,
	}
	terms.EnsureDefaults()
	return terms
}
