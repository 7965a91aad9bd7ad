// Package config provides configuration loading for the service.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"chainswitch/internal/model"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	ListenAddr         string
	LogLevel           string
	PGDSN              string
	AdminKey           string
	KeeperKey          string
	FeedURL            string
	FeedAPIKey         string
	BridgeURL          string
	BridgeAPIKey       string
	HTTPTimeout        time.Duration
	RateLimitPerMinute int

	KeeperEnabled  bool
	KeeperInterval time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration

	SlippageCapUSD       decimal.Decimal
	SlippageDefaultDepth decimal.Decimal

	Thresholds  model.Thresholds
	FeeSchedule model.BridgeFeeSchedule
	Chains      []model.ChainConfig
}

// chainEntry is the config-file shape of one chain; gas price boundaries are
// given in gwei for readability and converted to wei.
type chainEntry struct {
	ID                  uint64 `mapstructure:"id"`
	Name                string `mapstructure:"name"`
	Enabled             bool   `mapstructure:"enabled"`
	BlockTimeSeconds    uint64 `mapstructure:"block_time_seconds"`
	FinalityTimeSeconds uint64 `mapstructure:"finality_time_seconds"`
	BridgeTimeSeconds   uint64 `mapstructure:"bridge_time_seconds"`
	MaxGasPriceGwei     uint64 `mapstructure:"max_gas_price_gwei"`
	CongestionLowGwei   uint64 `mapstructure:"congestion_low_gwei"`
	CongestionMedGwei   uint64 `mapstructure:"congestion_medium_gwei"`
	CongestionHighGwei  uint64 `mapstructure:"congestion_high_gwei"`
	NativeAssetID       string `mapstructure:"native_asset_id"`
	RPCURL              string `mapstructure:"rpc_url"`
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHAINSWITCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen", ":8080")
	v.SetDefault("log-level", "info")
	v.SetDefault("http-timeout", 10*time.Second)
	v.SetDefault("rate-limit-per-minute", 120)
	v.SetDefault("keeper-enabled", true)
	v.SetDefault("keeper-interval", 60*time.Second)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("slippage-cap-usd", 25.0)
	v.SetDefault("slippage-default-depth", 5_000_000.0)
	v.SetDefault("min-savings-bps", 500)
	v.SetDefault("min-absolute-savings-usd", 10.0)
	v.SetDefault("max-bridge-time-seconds", 1800)
	v.SetDefault("gas-staleness-seconds", 600)
	v.SetDefault("feed-max-age-seconds", 3600)
	v.SetDefault("recovery-timeout-seconds", 3600)
	v.SetDefault("gas-safety-margin", 1.2)
	v.SetDefault("min-gas-price-gwei", 0)
	v.SetDefault("max-gas-price-gwei", 10_000)
	v.SetDefault("bridge-base-fee-usd", 0.5)
	v.SetDefault("bridge-fee-bps", 8)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var entries []chainEntry
	if err := v.UnmarshalKey("chains", &entries); err != nil {
		return Config{}, fmt.Errorf("parse chains: %w", err)
	}
	chains := make([]model.ChainConfig, 0, len(entries))
	for _, e := range entries {
		if e.ID == 0 {
			return Config{}, fmt.Errorf("chain entry %q has no id", e.Name)
		}
		chains = append(chains, model.ChainConfig{
			ID:                  model.ChainID(e.ID),
			Name:                e.Name,
			Enabled:             e.Enabled,
			BlockTimeSeconds:    e.BlockTimeSeconds,
			FinalityTimeSeconds: e.FinalityTimeSeconds,
			BridgeTimeSeconds:   e.BridgeTimeSeconds,
			MaxGasPriceWei:      gweiToWei(e.MaxGasPriceGwei),
			CongestionLowWei:    gweiToWei(e.CongestionLowGwei),
			CongestionMediumWei: gweiToWei(e.CongestionMedGwei),
			CongestionHighWei:   gweiToWei(e.CongestionHighGwei),
			NativeAssetID:       e.NativeAssetID,
			RPCURL:              e.RPCURL,
		})
	}

	thresholds := model.Thresholds{
		MinSavingsBPS:          v.GetUint64("min-savings-bps"),
		MinAbsoluteSavingsUSD:  decimal.NewFromFloat(v.GetFloat64("min-absolute-savings-usd")),
		MaxBridgeTimeSeconds:   v.GetUint64("max-bridge-time-seconds"),
		GasStalenessSeconds:    v.GetUint64("gas-staleness-seconds"),
		FeedMaxAgeSeconds:      v.GetUint64("feed-max-age-seconds"),
		RecoveryTimeoutSeconds: v.GetUint64("recovery-timeout-seconds"),
		GasSafetyMargin:        decimal.NewFromFloat(v.GetFloat64("gas-safety-margin")),
		MinGasPriceWei:         gweiToWei(v.GetUint64("min-gas-price-gwei")),
		MaxGasPriceWei:         gweiToWei(v.GetUint64("max-gas-price-gwei")),
	}

	cfg := Config{
		ListenAddr:           v.GetString("listen"),
		LogLevel:             v.GetString("log-level"),
		PGDSN:                v.GetString("pg-dsn"),
		AdminKey:             v.GetString("admin-key"),
		KeeperKey:            v.GetString("keeper-key"),
		FeedURL:              v.GetString("feed-url"),
		FeedAPIKey:           v.GetString("feed-api-key"),
		BridgeURL:            v.GetString("bridge-url"),
		BridgeAPIKey:         v.GetString("bridge-api-key"),
		HTTPTimeout:          v.GetDuration("http-timeout"),
		RateLimitPerMinute:   v.GetInt("rate-limit-per-minute"),
		KeeperEnabled:        v.GetBool("keeper-enabled"),
		KeeperInterval:       v.GetDuration("keeper-interval"),
		MaxRetries:           v.GetInt("max-retries"),
		RetryBackoff:         v.GetDuration("retry-backoff"),
		SlippageCapUSD:       decimal.NewFromFloat(v.GetFloat64("slippage-cap-usd")),
		SlippageDefaultDepth: decimal.NewFromFloat(v.GetFloat64("slippage-default-depth")),
		Thresholds:           thresholds,
		FeeSchedule: model.BridgeFeeSchedule{
			BaseFeeUSD: decimal.NewFromFloat(v.GetFloat64("bridge-base-fee-usd")),
			FeeBPS:     v.GetUint64("bridge-fee-bps"),
		},
		Chains: chains,
	}

	return cfg, nil
}

func gweiToWei(gwei uint64) *big.Int {
	if gwei == 0 {
		return nil
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(gwei), big.NewInt(1e9))
}
