package model

import "github.com/shopspring/decimal"

// CostBreakdown is the per-chain USD cost of executing a swap.
// It is recomputed on every quote and never persisted.
type CostBreakdown struct {
	ChainID              ChainID         `json:"chain_id"`
	GasCostUSD           decimal.Decimal `json:"gas_cost_usd"`
	BridgeFeeUSD         decimal.Decimal `json:"bridge_fee_usd"`
	SlippageCostUSD      decimal.Decimal `json:"slippage_cost_usd"`
	TotalCostUSD         decimal.Decimal `json:"total_cost_usd"`
	ExecutionTimeSeconds uint64          `json:"execution_time_seconds"`
}
