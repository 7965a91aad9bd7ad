package model

import "github.com/shopspring/decimal"

// OptimizationQuote is the side-effect-free answer to "should this swap move chains".
// Identical inputs with no intervening price update produce identical quotes.
type OptimizationQuote struct {
	OriginalChain        ChainID         `json:"original_chain"`
	OptimizedChain       ChainID         `json:"optimized_chain"`
	SavingsUSD           decimal.Decimal `json:"savings_usd"`
	SavingsPercent       decimal.Decimal `json:"savings_percent"`
	EstimatedBridgeTime  uint64          `json:"estimated_bridge_time_seconds"`
	ShouldOptimize       bool            `json:"should_optimize"`
	Baseline             CostBreakdown   `json:"baseline"`
	Optimized            CostBreakdown   `json:"optimized"`
	FallbackReason       string          `json:"fallback_reason,omitempty"`
}
