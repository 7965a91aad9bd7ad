package costmodel

import (
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// SlippageEstimator prices the expected execution slippage of a swap in USD.
type SlippageEstimator interface {
	EstimateUSD(tokenIn, tokenOut common.Address, amountIn *big.Int) decimal.Decimal
}

type zeroSlippage struct{}

func (zeroSlippage) EstimateUSD(common.Address, common.Address, *big.Int) decimal.Decimal {
	return decimal.Zero
}

// DepthEstimator estimates slippage from configured liquidity depth per pair:
// the deeper the pool relative to the trade, the smaller the cost. The result
// is bounded by CapUSD.
type DepthEstimator struct {
	mu           sync.RWMutex
	depths       map[string]decimal.Decimal
	defaultDepth decimal.Decimal
	capUSD       decimal.Decimal
}

// NewDepthEstimator builds an estimator with the given default pool depth
// (18-decimal token units) and USD cap.
func NewDepthEstimator(defaultDepth, capUSD decimal.Decimal) *DepthEstimator {
	return &DepthEstimator{
		depths:       make(map[string]decimal.Decimal),
		defaultDepth: defaultDepth,
		capUSD:       capUSD,
	}
}

// SetDepth records liquidity depth for a token pair.
func (e *DepthEstimator) SetDepth(tokenIn, tokenOut common.Address, depth decimal.Decimal) {
	e.mu.Lock()
	e.depths[pairKey(tokenIn, tokenOut)] = depth
	e.mu.Unlock()
}

// EstimateUSD returns cap × amount/(amount+depth), so slippage approaches the
// cap as the trade dominates available liquidity.
func (e *DepthEstimator) EstimateUSD(tokenIn, tokenOut common.Address, amountIn *big.Int) decimal.Decimal {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return decimal.Zero
	}

	e.mu.RLock()
	depth, ok := e.depths[pairKey(tokenIn, tokenOut)]
	e.mu.RUnlock()
	if !ok {
		depth = e.defaultDepth
	}
	if depth.Sign() <= 0 {
		return e.capUSD
	}

	amount := decimal.NewFromBigInt(amountIn, 0).Div(amountScale)
	cost := e.capUSD.Mul(amount).Div(amount.Add(depth))
	if cost.GreaterThan(e.capUSD) {
		return e.capUSD
	}
	return cost
}

func pairKey(tokenIn, tokenOut common.Address) string {
	return strings.ToLower(tokenIn.Hex()) + ":" + strings.ToLower(tokenOut.Hex())
}
