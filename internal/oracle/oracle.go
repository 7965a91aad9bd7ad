// Package oracle tracks per-chain gas prices with bounded history,
// staleness guarantees, and USD normalization.
package oracle

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"chainswitch/internal/model"
	"chainswitch/internal/pricefeed"
	"chainswitch/internal/registry"
)

// HistoryCapacity bounds the per-chain sample ring.
const HistoryCapacity = 24

var weiPerEther = decimal.New(1, 18)

// Oracle holds the latest observed gas price per chain. Updates go through a
// single keeper-gated writer path; readers observe the previous or the new
// snapshot atomically, never a partial write.
type Oracle struct {
	registry *registry.Registry
	feed     pricefeed.Client
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	chains map[model.ChainID]*chainPrices
}

type chainPrices struct {
	snap atomic.Pointer[window]
}

// window is an immutable snapshot of a chain's recent samples, newest last.
type window struct {
	samples []model.GasPriceSample
}

// New builds an Oracle over the given registry and feed.
func New(reg *registry.Registry, feed pricefeed.Client, logger *zap.Logger) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oracle{
		registry: reg,
		feed:     feed,
		logger:   logger,
		now:      time.Now,
		chains:   make(map[model.ChainID]*chainPrices),
	}
}

// SetNowFunc overrides the clock, for tests.
func (o *Oracle) SetNowFunc(now func() time.Time) { o.now = now }

// Update records a new gas price observation for chainID. Only the keeper
// capability is accepted; prices outside the configured global bounds are
// rejected before any state changes.
func (o *Oracle) Update(cap model.Capability, chainID model.ChainID, priceWei *big.Int) error {
	if cap.Role != model.RoleKeeper && cap.Role != model.RoleAdmin {
		return fmt.Errorf("keeper capability required: %w", model.ErrUnauthorized)
	}
	if _, err := o.registry.Chain(chainID); err != nil {
		return err
	}
	if priceWei == nil || priceWei.Sign() <= 0 {
		return fmt.Errorf("price must be positive: %w", model.ErrPriceOutOfBounds)
	}

	t := o.registry.Thresholds()
	if t.MinGasPriceWei != nil && priceWei.Cmp(t.MinGasPriceWei) < 0 {
		return fmt.Errorf("price %s below minimum %s: %w", priceWei, t.MinGasPriceWei, model.ErrPriceOutOfBounds)
	}
	if t.MaxGasPriceWei != nil && priceWei.Cmp(t.MaxGasPriceWei) > 0 {
		return fmt.Errorf("price %s above maximum %s: %w", priceWei, t.MaxGasPriceWei, model.ErrPriceOutOfBounds)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	cp, ok := o.chains[chainID]
	if !ok {
		cp = &chainPrices{}
		cp.snap.Store(&window{})
		o.chains[chainID] = cp
	}

	prev := cp.snap.Load()
	observedAt := o.now().UTC()
	if n := len(prev.samples); n > 0 && observedAt.Before(prev.samples[n-1].ObservedAt) {
		// observedAt is monotonically non-decreasing per chain
		observedAt = prev.samples[n-1].ObservedAt
	}

	next := &window{samples: make([]model.GasPriceSample, 0, HistoryCapacity)}
	start := 0
	if len(prev.samples) >= HistoryCapacity {
		start = len(prev.samples) - HistoryCapacity + 1
	}
	next.samples = append(next.samples, prev.samples[start:]...)
	next.samples = append(next.samples, model.GasPriceSample{
		PriceWei:   new(big.Int).Set(priceWei),
		ObservedAt: observedAt,
	})
	cp.snap.Store(next)

	o.logger.Debug("gas price updated",
		zap.Uint64("chain", uint64(chainID)),
		zap.String("price_wei", priceWei.String()),
	)
	return nil
}

// Get returns the latest sample for chainID.
func (o *Oracle) Get(chainID model.ChainID) (model.GasPriceSample, error) {
	if _, err := o.registry.Chain(chainID); err != nil {
		return model.GasPriceSample{}, err
	}
	w := o.loadWindow(chainID)
	if w == nil || len(w.samples) == 0 {
		return model.GasPriceSample{}, fmt.Errorf("no sample for chain %d: %w", chainID, model.ErrUnknownChain)
	}
	latest := w.samples[len(w.samples)-1]
	return model.GasPriceSample{
		PriceWei:   new(big.Int).Set(latest.PriceWei),
		ObservedAt: latest.ObservedAt,
	}, nil
}

// USDPrice returns the USD cost of one gas unit on chainID. It fails with
// ErrStalePrice when the latest sample exceeds the staleness threshold and
// with ErrPriceFeedUnavailable when the native asset conversion is stale or
// unreachable.
func (o *Oracle) USDPrice(ctx context.Context, chainID model.ChainID) (decimal.Decimal, error) {
	cfg, err := o.registry.Chain(chainID)
	if err != nil {
		return decimal.Zero, err
	}
	sample, err := o.Get(chainID)
	if err != nil {
		return decimal.Zero, err
	}

	t := o.registry.Thresholds()
	now := o.now().UTC()
	if age := now.Sub(sample.ObservedAt); age > time.Duration(t.GasStalenessSeconds)*time.Second {
		return decimal.Zero, fmt.Errorf("chain %d sample age %s: %w", chainID, age, model.ErrStalePrice)
	}

	nativeUSD, updatedAt, err := o.feed.USDPrice(ctx, cfg.NativeAssetID)
	if err != nil {
		return decimal.Zero, err
	}
	if age := now.Sub(updatedAt); age > time.Duration(t.FeedMaxAgeSeconds)*time.Second {
		return decimal.Zero, fmt.Errorf("feed %s age %s: %w", cfg.NativeAssetID, age, model.ErrPriceFeedUnavailable)
	}

	gasNative := decimal.NewFromBigInt(sample.PriceWei, 0).Div(weiPerEther)
	return gasNative.Mul(nativeUSD), nil
}

// Trend computes summary statistics over the last windowSize samples,
// clamped to what is actually populated.
func (o *Oracle) Trend(chainID model.ChainID, windowSize int) (model.GasTrend, error) {
	if _, err := o.registry.Chain(chainID); err != nil {
		return model.GasTrend{}, err
	}
	w := o.loadWindow(chainID)
	if w == nil || len(w.samples) == 0 {
		return model.GasTrend{}, fmt.Errorf("no samples for chain %d: %w", chainID, model.ErrUnknownChain)
	}

	samples := w.samples
	if windowSize > 0 && windowSize < len(samples) {
		samples = samples[len(samples)-windowSize:]
	}

	sum := new(big.Int)
	minPrice := new(big.Int).Set(samples[0].PriceWei)
	maxPrice := new(big.Int).Set(samples[0].PriceWei)
	for _, s := range samples {
		sum.Add(sum, s.PriceWei)
		if s.PriceWei.Cmp(minPrice) < 0 {
			minPrice.Set(s.PriceWei)
		}
		if s.PriceWei.Cmp(maxPrice) > 0 {
			maxPrice.Set(s.PriceWei)
		}
	}
	count := int64(len(samples))
	avg := new(big.Int).Quo(sum, big.NewInt(count))

	return model.GasTrend{
		Samples:      len(samples),
		AvgWei:       avg,
		MinWei:       minPrice,
		MaxWei:       maxPrice,
		Volatility:   volatility(samples, avg),
		IsIncreasing: isIncreasing(samples),
	}, nil
}

// Congestion classifies the latest gas price against the chain's boundaries.
func (o *Oracle) Congestion(chainID model.ChainID) (model.CongestionLevel, error) {
	cfg, err := o.registry.Chain(chainID)
	if err != nil {
		return "", err
	}
	sample, err := o.Get(chainID)
	if err != nil {
		return "", err
	}
	return cfg.Congestion(sample.PriceWei), nil
}

func (o *Oracle) loadWindow(chainID model.ChainID) *window {
	o.mu.Lock()
	cp := o.chains[chainID]
	o.mu.Unlock()
	if cp == nil {
		return nil
	}
	return cp.snap.Load()
}

// volatility is the relative standard deviation of the window.
func volatility(samples []model.GasPriceSample, avg *big.Int) float64 {
	if len(samples) < 2 || avg.Sign() == 0 {
		return 0
	}
	mean, _ := new(big.Float).SetInt(avg).Float64()
	var sumSq float64
	for _, s := range samples {
		v, _ := new(big.Float).SetInt(s.PriceWei).Float64()
		d := v - mean
		sumSq += d * d
	}
	variance := sumSq / float64(len(samples))
	return math.Sqrt(variance) / mean
}

// isIncreasing compares the mean of the newer half against the older half.
func isIncreasing(samples []model.GasPriceSample) bool {
	if len(samples) < 2 {
		return false
	}
	mid := len(samples) / 2
	older := new(big.Int)
	newer := new(big.Int)
	for _, s := range samples[:mid] {
		older.Add(older, s.PriceWei)
	}
	for _, s := range samples[mid:] {
		newer.Add(newer, s.PriceWei)
	}
	olderMean := new(big.Rat).SetFrac(older, big.NewInt(int64(mid)))
	newerMean := new(big.Rat).SetFrac(newer, big.NewInt(int64(len(samples)-mid)))
	return newerMean.Cmp(olderMean) > 0
}
