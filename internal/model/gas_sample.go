package model

import (
	"math/big"
	"time"
)

// GasPriceSample is one observed gas price for a chain.
type GasPriceSample struct {
	PriceWei   *big.Int  `json:"price_wei"`
	ObservedAt time.Time `json:"observed_at"`
}

// GasTrend summarizes recent gas price history for a chain.
type GasTrend struct {
	Samples    int      `json:"samples"`
	AvgWei     *big.Int `json:"avg_wei"`
	MinWei     *big.Int `json:"min_wei"`
	MaxWei     *big.Int `json:"max_wei"`
	Volatility float64  `json:"volatility"`

	// IsIncreasing compares the mean of the newer half of the window
	// against the older half.
	IsIncreasing bool `json:"is_increasing"`
}
