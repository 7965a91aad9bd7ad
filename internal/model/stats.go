package model

// ChainStats aggregates swap outcomes per source chain.
type ChainStats struct {
	ChainID             ChainID `json:"chain_id"`
	TotalSwaps          uint64  `json:"total_swaps"`
	SuccessfulSwaps     uint64  `json:"successful_swaps"`
	FailedSwaps         uint64  `json:"failed_swaps"`
	RecoveredSwaps      uint64  `json:"recovered_swaps"`
	AvgExecutionSeconds float64 `json:"avg_execution_seconds"`
}
