package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Thresholds holds the system-wide tunables consulted on every decision.
// Owned by the administrative role; mutations are atomic and take effect
// on the next evaluation.
type Thresholds struct {
	MinSavingsBPS          uint64          `json:"min_savings_bps"`
	MinAbsoluteSavingsUSD  decimal.Decimal `json:"min_absolute_savings_usd"`
	MaxBridgeTimeSeconds   uint64          `json:"max_bridge_time_seconds"`
	GasStalenessSeconds    uint64          `json:"gas_staleness_seconds"`
	FeedMaxAgeSeconds      uint64          `json:"feed_max_age_seconds"`
	RecoveryTimeoutSeconds uint64          `json:"recovery_timeout_seconds"`
	GasSafetyMargin        decimal.Decimal `json:"gas_safety_margin"`
	MinGasPriceWei         *big.Int        `json:"min_gas_price_wei"`
	MaxGasPriceWei         *big.Int        `json:"max_gas_price_wei"`
}

// DefaultThresholds returns the documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSavingsBPS:          500,
		MinAbsoluteSavingsUSD:  decimal.NewFromInt(10),
		MaxBridgeTimeSeconds:   1800,
		GasStalenessSeconds:    600,
		FeedMaxAgeSeconds:      3600,
		RecoveryTimeoutSeconds: 3600,
		GasSafetyMargin:        decimal.NewFromFloat(1.2),
		MinGasPriceWei:         big.NewInt(1),
		MaxGasPriceWei:         new(big.Int).Mul(big.NewInt(10_000), big.NewInt(1e9)),
	}
}

// BridgeFeeSchedule prices a bridging transfer: a flat USD base plus a
// share of the bridged amount in basis points.
type BridgeFeeSchedule struct {
	BaseFeeUSD decimal.Decimal `json:"base_fee_usd"`
	FeeBPS     uint64          `json:"fee_bps"`
}

// DefaultBridgeFeeSchedule returns the documented defaults.
func DefaultBridgeFeeSchedule() BridgeFeeSchedule {
	return BridgeFeeSchedule{
		BaseFeeUSD: decimal.NewFromFloat(0.5),
		FeeBPS:     8,
	}
}
