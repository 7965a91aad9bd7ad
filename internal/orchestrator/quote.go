package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"chainswitch/internal/costmodel"
	"chainswitch/internal/model"
)

// Quote answers whether the intent should move chains. It is side-effect-free
// and safe to call speculatively before Initiate. Staleness of a non-critical
// price source degrades to "do not optimize" instead of a hard failure.
func (o *Orchestrator) Quote(ctx context.Context, intent model.SwapIntent) (model.OptimizationQuote, error) {
	if intent.User == (common.Address{}) {
		return model.OptimizationQuote{}, model.ErrEmptyUser
	}
	if intent.AmountIn == nil || intent.AmountIn.Sign() <= 0 {
		return model.OptimizationQuote{}, model.ErrZeroAmount
	}

	thresholds, disabled := o.effectiveThresholds(intent.User)
	if disabled {
		return model.OptimizationQuote{
			OriginalChain:  intent.SourceChain,
			OptimizedChain: intent.SourceChain,
			FallbackReason: "optimization disabled by user preferences",
		}, nil
	}

	result, err := o.model.FindOptimalChain(ctx, costmodel.Query{
		TokenIn:               intent.TokenIn,
		TokenOut:              intent.TokenOut,
		AmountIn:              intent.AmountIn,
		SourceChain:           intent.SourceChain,
		GasUnits:              intent.GasUnits,
		MinSavingsBPS:         thresholds.MinSavingsBPS,
		MinAbsoluteSavingsUSD: thresholds.MinAbsoluteSavingsUSD,
		MaxBridgeTimeSeconds:  thresholds.MaxBridgeTimeSeconds,
	})
	if err != nil {
		if errors.Is(err, model.ErrStalePrice) || errors.Is(err, model.ErrPriceFeedUnavailable) {
			o.metrics.ObserveQuote(false)
			return model.OptimizationQuote{
				OriginalChain:  intent.SourceChain,
				OptimizedChain: intent.SourceChain,
				FallbackReason: fmt.Sprintf("price data unavailable: %v", err),
			}, nil
		}
		return model.OptimizationQuote{}, err
	}

	o.metrics.ObserveQuote(result.ShouldOptimize)
	return model.OptimizationQuote{
		OriginalChain:       intent.SourceChain,
		OptimizedChain:      result.ChainID,
		SavingsUSD:          result.SavingsUSD,
		SavingsPercent:      result.SavingsPercent,
		EstimatedBridgeTime: result.Best.ExecutionTimeSeconds,
		ShouldOptimize:      result.ShouldOptimize,
		Baseline:            result.Baseline,
		Optimized:           result.Best,
	}, nil
}
