package model

import "math/big"

// ChainID identifies a supported execution chain.
type ChainID uint64

// CongestionLevel classifies the current gas price against configured boundaries.
type CongestionLevel string

const (
	CongestionLow      CongestionLevel = "low"
	CongestionMedium   CongestionLevel = "medium"
	CongestionHigh     CongestionLevel = "high"
	CongestionCritical CongestionLevel = "critical"
)

// ChainConfig holds static metadata for one supported chain.
// Entries are created at configuration time and only ever disabled, never removed.
type ChainConfig struct {
	ID                  ChainID  `json:"id"`
	Name                string   `json:"name"`
	Enabled             bool     `json:"enabled"`
	BlockTimeSeconds    uint64   `json:"block_time_seconds"`
	FinalityTimeSeconds uint64   `json:"finality_time_seconds"`
	BridgeTimeSeconds   uint64   `json:"bridge_time_seconds"`
	MaxGasPriceWei      *big.Int `json:"max_gas_price_wei"`
	CongestionLowWei    *big.Int `json:"congestion_low_wei"`
	CongestionMediumWei *big.Int `json:"congestion_medium_wei"`
	CongestionHighWei   *big.Int `json:"congestion_high_wei"`

	// NativeAssetID is the price feed identifier of the chain's gas asset.
	NativeAssetID string `json:"native_asset_id"`

	// RPCURL is used by the in-process keeper poller; empty disables polling.
	RPCURL string `json:"rpc_url,omitempty"`
}

// Congestion classifies a gas price against the configured boundaries.
func (c ChainConfig) Congestion(priceWei *big.Int) CongestionLevel {
	if priceWei == nil {
		return CongestionLow
	}
	switch {
	case c.CongestionHighWei != nil && priceWei.Cmp(c.CongestionHighWei) > 0:
		return CongestionCritical
	case c.CongestionMediumWei != nil && priceWei.Cmp(c.CongestionMediumWei) > 0:
		return CongestionHigh
	case c.CongestionLowWei != nil && priceWei.Cmp(c.CongestionLowWei) > 0:
		return CongestionMedium
	default:
		return CongestionLow
	}
}
