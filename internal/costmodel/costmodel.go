// Package costmodel converts gas, bridge fee, and slippage inputs into a
// comparable total USD cost per candidate chain and picks the optimal chain
// under the configured thresholds. All computations are pure; prices are
// snapshotted before any comparison so a quote never reads interleaved state.
package costmodel

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"chainswitch/internal/model"
	"chainswitch/internal/registry"
)

var (
	bpsDenominator = decimal.NewFromInt(10_000)
	amountScale    = decimal.New(1, 18)
)

// PriceSource supplies per-chain gas prices. *oracle.Oracle satisfies it.
type PriceSource interface {
	USDPrice(ctx context.Context, chainID model.ChainID) (decimal.Decimal, error)
	Get(chainID model.ChainID) (model.GasPriceSample, error)
}

// Model prices a swap on each candidate chain.
type Model struct {
	registry *registry.Registry
	prices   PriceSource
	slippage SlippageEstimator
}

// New builds a cost model. A nil estimator falls back to zero slippage.
func New(reg *registry.Registry, prices PriceSource, slippage SlippageEstimator) *Model {
	if slippage == nil {
		slippage = zeroSlippage{}
	}
	return &Model{registry: reg, prices: prices, slippage: slippage}
}

// Query describes one optimal-chain search.
type Query struct {
	TokenIn               common.Address
	TokenOut              common.Address
	AmountIn              *big.Int
	SourceChain           model.ChainID
	GasUnits              uint64
	MinSavingsBPS         uint64
	MinAbsoluteSavingsUSD decimal.Decimal
	MaxBridgeTimeSeconds  uint64
	ExcludeChains         map[model.ChainID]bool
}

// Result is the outcome of an optimal-chain search. ShouldOptimize false with
// the source chain as the pick is a first-class answer, not an error.
type Result struct {
	ChainID        model.ChainID
	SavingsUSD     decimal.Decimal
	SavingsPercent decimal.Decimal
	Baseline       model.CostBreakdown
	Best           model.CostBreakdown
	ShouldOptimize bool
}

// TotalCost computes the full USD breakdown of executing the swap on chainID,
// from the perspective of a caller currently on sourceChain.
func (m *Model) TotalCost(ctx context.Context, chainID, sourceChain model.ChainID, gasUnits uint64, tokenIn, tokenOut common.Address, amountIn *big.Int) (model.CostBreakdown, error) {
	gasUSD, err := m.prices.USDPrice(ctx, chainID)
	if err != nil {
		return model.CostBreakdown{}, err
	}
	return m.breakdown(chainID, sourceChain, gasUnits, tokenIn, tokenOut, amountIn, gasUSD)
}

// FindOptimalChain prices the source chain as the baseline and every enabled,
// non-excluded candidate within the bridge time budget, then applies the dual
// savings threshold. Ties break on execution time, then on chain id.
func (m *Model) FindOptimalChain(ctx context.Context, q Query) (Result, error) {
	if q.AmountIn == nil || q.AmountIn.Sign() <= 0 {
		return Result{}, model.ErrZeroAmount
	}
	if _, err := m.registry.Chain(q.SourceChain); err != nil {
		return Result{}, err
	}

	// Snapshot all prices up front so candidates are compared consistently.
	candidates := m.registry.EnabledChains()
	gasUSD := make(map[model.ChainID]decimal.Decimal, len(candidates)+1)
	baseUSD, err := m.prices.USDPrice(ctx, q.SourceChain)
	if err != nil {
		return Result{}, fmt.Errorf("baseline chain %d: %w", q.SourceChain, err)
	}
	gasUSD[q.SourceChain] = baseUSD
	for _, cfg := range candidates {
		if cfg.ID == q.SourceChain {
			continue
		}
		usd, err := m.prices.USDPrice(ctx, cfg.ID)
		if err != nil {
			if errors.Is(err, model.ErrStalePrice) || errors.Is(err, model.ErrPriceFeedUnavailable) || errors.Is(err, model.ErrUnknownChain) {
				continue
			}
			return Result{}, fmt.Errorf("candidate chain %d: %w", cfg.ID, err)
		}
		gasUSD[cfg.ID] = usd
	}

	baseline, err := m.breakdown(q.SourceChain, q.SourceChain, q.GasUnits, q.TokenIn, q.TokenOut, q.AmountIn, baseUSD)
	if err != nil {
		return Result{}, err
	}

	noOptimize := Result{
		ChainID:        q.SourceChain,
		SavingsUSD:     decimal.Zero,
		SavingsPercent: decimal.Zero,
		Baseline:       baseline,
		Best:           baseline,
	}

	var best *model.CostBreakdown
	for _, cfg := range candidates {
		if cfg.ID == q.SourceChain || q.ExcludeChains[cfg.ID] {
			continue
		}
		if q.MaxBridgeTimeSeconds > 0 && cfg.BridgeTimeSeconds > q.MaxBridgeTimeSeconds {
			continue
		}
		usd, ok := gasUSD[cfg.ID]
		if !ok {
			continue
		}
		if cfg.MaxGasPriceWei != nil {
			if sample, err := m.prices.Get(cfg.ID); err == nil && sample.PriceWei.Cmp(cfg.MaxGasPriceWei) > 0 {
				continue
			}
		}

		cb, err := m.breakdown(cfg.ID, q.SourceChain, q.GasUnits, q.TokenIn, q.TokenOut, q.AmountIn, usd)
		if err != nil {
			continue
		}
		if best == nil || better(cb, *best) {
			candidate := cb
			best = &candidate
		}
	}

	if best == nil || best.TotalCostUSD.GreaterThanOrEqual(baseline.TotalCostUSD) {
		return noOptimize, nil
	}

	savings := baseline.TotalCostUSD.Sub(best.TotalCostUSD)
	savingsBPS := savings.Mul(bpsDenominator).Div(baseline.TotalCostUSD)
	if savingsBPS.LessThan(decimal.NewFromInt(int64(q.MinSavingsBPS))) ||
		savings.LessThan(q.MinAbsoluteSavingsUSD) {
		return noOptimize, nil
	}

	return Result{
		ChainID:        best.ChainID,
		SavingsUSD:     savings,
		SavingsPercent: savingsBPS.Div(decimal.NewFromInt(100)),
		Baseline:       baseline,
		Best:           *best,
		ShouldOptimize: true,
	}, nil
}

func (m *Model) breakdown(chainID, sourceChain model.ChainID, gasUnits uint64, tokenIn, tokenOut common.Address, amountIn *big.Int, gasUnitUSD decimal.Decimal) (model.CostBreakdown, error) {
	cfg, err := m.registry.Chain(chainID)
	if err != nil {
		return model.CostBreakdown{}, err
	}

	t := m.registry.Thresholds()
	gasCost := decimal.NewFromInt(int64(gasUnits)).Mul(t.GasSafetyMargin).Mul(gasUnitUSD)

	bridgeFee := decimal.Zero
	execTime := uint64(0)
	if chainID != sourceChain {
		schedule := m.registry.FeeSchedule()
		amountUSD := decimal.NewFromBigInt(amountIn, 0).Div(amountScale)
		bridgeFee = schedule.BaseFeeUSD.Add(
			amountUSD.Mul(decimal.NewFromInt(int64(schedule.FeeBPS))).Div(bpsDenominator))
		execTime = cfg.BridgeTimeSeconds
	}

	slippage := m.slippage.EstimateUSD(tokenIn, tokenOut, amountIn)

	return model.CostBreakdown{
		ChainID:              chainID,
		GasCostUSD:           gasCost,
		BridgeFeeUSD:         bridgeFee,
		SlippageCostUSD:      slippage,
		TotalCostUSD:         gasCost.Add(bridgeFee).Add(slippage),
		ExecutionTimeSeconds: execTime,
	}, nil
}

// better orders candidates: lower total cost, then shorter execution time,
// then lower chain id.
func better(a, b model.CostBreakdown) bool {
	switch a.TotalCostUSD.Cmp(b.TotalCostUSD) {
	case -1:
		return true
	case 1:
		return false
	}
	if a.ExecutionTimeSeconds != b.ExecutionTimeSeconds {
		return a.ExecutionTimeSeconds < b.ExecutionTimeSeconds
	}
	return a.ChainID < b.ChainID
}
