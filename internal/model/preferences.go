package model

import "github.com/shopspring/decimal"

// UserPreferences optionally overrides the global optimization thresholds
// for one user. Nil fields fall back to the system-wide configuration.
type UserPreferences struct {
	MinSavingsBPS         *uint64          `json:"min_savings_bps,omitempty"`
	MinAbsoluteSavingsUSD *decimal.Decimal `json:"min_absolute_savings_usd,omitempty"`
	MaxBridgeTimeSeconds  *uint64          `json:"max_bridge_time_seconds,omitempty"`
	OptimizationDisabled  bool             `json:"optimization_disabled"`
}
