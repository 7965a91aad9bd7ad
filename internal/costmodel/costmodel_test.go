package costmodel

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"chainswitch/internal/model"
	"chainswitch/internal/registry"
)

type fakePrices struct {
	usd  map[model.ChainID]decimal.Decimal
	errs map[model.ChainID]error
}

func (f *fakePrices) USDPrice(_ context.Context, chainID model.ChainID) (decimal.Decimal, error) {
	if err := f.errs[chainID]; err != nil {
		return decimal.Zero, err
	}
	usd, ok := f.usd[chainID]
	if !ok {
		return decimal.Zero, model.ErrUnknownChain
	}
	return usd, nil
}

func (f *fakePrices) Get(_ model.ChainID) (model.GasPriceSample, error) {
	return model.GasPriceSample{PriceWei: big.NewInt(1e9), ObservedAt: time.Now()}, nil
}

func testChains() []model.ChainConfig {
	return []model.ChainConfig{
		{ID: 1, Name: "mainnet", Enabled: true, BridgeTimeSeconds: 900},
		{ID: 10, Name: "optimism", Enabled: true, BridgeTimeSeconds: 300},
		{ID: 137, Name: "polygon", Enabled: true, BridgeTimeSeconds: 600},
	}
}

// amount of 1000 tokens in 18-decimal units; the default fee schedule prices
// its bridge fee at 0.5 + 1000*8/10000 = 1.30 USD.
var testAmount = new(big.Int).Mul(big.NewInt(1000), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

func baseQuery() Query {
	return Query{
		AmountIn:              testAmount,
		SourceChain:           1,
		GasUnits:              10_000,
		MinSavingsBPS:         500,
		MinAbsoluteSavingsUSD: decimal.NewFromInt(10),
		MaxBridgeTimeSeconds:  1800,
	}
}

func usd(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestFindOptimalChainPicksCheapest(t *testing.T) {
	// 10000 gas units with the 1.2 safety margin cost 12000 gas-unit-USD:
	// baseline 60.00, optimism 1.20 + 1.30 bridge fee = 2.50 total.
	m := New(registry.New(testChains()), &fakePrices{usd: map[model.ChainID]decimal.Decimal{
		1:   usd("0.005"),
		10:  usd("0.0001"),
		137: usd("0.004"),
	}}, nil)

	res, err := m.FindOptimalChain(context.Background(), baseQuery())
	if err != nil {
		t.Fatalf("find optimal: %v", err)
	}
	if !res.ShouldOptimize {
		t.Fatalf("expected optimization, got %+v", res)
	}
	if res.ChainID != 10 {
		t.Fatalf("chain = %d, want 10", res.ChainID)
	}
	if want := usd("57.5"); !res.SavingsUSD.Equal(want) {
		t.Fatalf("savings = %s, want %s", res.SavingsUSD, want)
	}
	if res.Best.BridgeFeeUSD.Equal(decimal.Zero) {
		t.Fatalf("cross-chain pick must carry a bridge fee")
	}
	if res.Baseline.ExecutionTimeSeconds != 0 {
		t.Fatalf("baseline execution time = %d, want 0", res.Baseline.ExecutionTimeSeconds)
	}
}

func TestAbsoluteSavingsFloor(t *testing.T) {
	// Baseline 60.00, candidate 52.50 + 1.30 = 53.80: 1033 bps of savings but
	// only 6.20 USD, below the 10 USD floor.
	m := New(registry.New(testChains()), &fakePrices{usd: map[model.ChainID]decimal.Decimal{
		1:  usd("0.005"),
		10: usd("0.004375"),
	}}, nil)

	res, err := m.FindOptimalChain(context.Background(), baseQuery())
	if err != nil {
		t.Fatalf("find optimal: %v", err)
	}
	if res.ShouldOptimize {
		t.Fatalf("expected no optimization, got savings %s", res.SavingsUSD)
	}
	if res.ChainID != 1 {
		t.Fatalf("chain = %d, want source chain 1", res.ChainID)
	}
	if !res.SavingsUSD.Equal(decimal.Zero) {
		t.Fatalf("no-optimize savings = %s, want 0", res.SavingsUSD)
	}
}

func TestRelativeSavingsFloor(t *testing.T) {
	// Baseline 1200.00, candidate 1148.70 + 1.30 = 1150.00: 50 USD of savings
	// but only 416 bps, below the 500 bps floor.
	m := New(registry.New(testChains()), &fakePrices{usd: map[model.ChainID]decimal.Decimal{
		1:  usd("0.1"),
		10: usd("0.095725"),
	}}, nil)

	res, err := m.FindOptimalChain(context.Background(), baseQuery())
	if err != nil {
		t.Fatalf("find optimal: %v", err)
	}
	if res.ShouldOptimize {
		t.Fatalf("expected no optimization, got savings %s", res.SavingsUSD)
	}
}

func TestDisabledChainExcluded(t *testing.T) {
	chains := testChains()
	chains[1].Enabled = false
	m := New(registry.New(chains), &fakePrices{usd: map[model.ChainID]decimal.Decimal{
		1:   usd("0.005"),
		10:  usd("0.0001"),
		137: usd("0.004"),
	}}, nil)

	res, err := m.FindOptimalChain(context.Background(), baseQuery())
	if err != nil {
		t.Fatalf("find optimal: %v", err)
	}
	if res.ChainID == 10 {
		t.Fatalf("disabled chain 10 must not be picked")
	}
}

func TestExplicitExclusion(t *testing.T) {
	m := New(registry.New(testChains()), &fakePrices{usd: map[model.ChainID]decimal.Decimal{
		1:  usd("0.005"),
		10: usd("0.0001"),
	}}, nil)

	q := baseQuery()
	q.ExcludeChains = map[model.ChainID]bool{10: true}
	res, err := m.FindOptimalChain(context.Background(), q)
	if err != nil {
		t.Fatalf("find optimal: %v", err)
	}
	if res.ShouldOptimize {
		t.Fatalf("only cheap candidate was excluded, expected no optimization")
	}
}

func TestBridgeTimeBudget(t *testing.T) {
	m := New(registry.New(testChains()), &fakePrices{usd: map[model.ChainID]decimal.Decimal{
		1:   usd("0.005"),
		10:  usd("0.0001"),
		137: usd("0.0002"),
	}}, nil)

	q := baseQuery()
	q.MaxBridgeTimeSeconds = 400 // optimism at 300s fits, polygon at 600s does not
	res, err := m.FindOptimalChain(context.Background(), q)
	if err != nil {
		t.Fatalf("find optimal: %v", err)
	}
	if res.ChainID != 10 {
		t.Fatalf("chain = %d, want 10", res.ChainID)
	}

	q.MaxBridgeTimeSeconds = 100
	res, err = m.FindOptimalChain(context.Background(), q)
	if err != nil {
		t.Fatalf("find optimal: %v", err)
	}
	if res.ShouldOptimize {
		t.Fatalf("no candidate within budget, expected no optimization")
	}
}

func TestStaleCandidateSkipped(t *testing.T) {
	m := New(registry.New(testChains()), &fakePrices{
		usd: map[model.ChainID]decimal.Decimal{
			1:   usd("0.005"),
			137: usd("0.0001"),
		},
		errs: map[model.ChainID]error{10: model.ErrStalePrice},
	}, nil)

	res, err := m.FindOptimalChain(context.Background(), baseQuery())
	if err != nil {
		t.Fatalf("find optimal: %v", err)
	}
	if res.ChainID != 137 {
		t.Fatalf("chain = %d, want 137 with stale 10 skipped", res.ChainID)
	}
}

func TestBaselineErrorPropagates(t *testing.T) {
	m := New(registry.New(testChains()), &fakePrices{
		errs: map[model.ChainID]error{1: model.ErrStalePrice},
	}, nil)

	_, err := m.FindOptimalChain(context.Background(), baseQuery())
	if !errors.Is(err, model.ErrStalePrice) {
		t.Fatalf("expected ErrStalePrice for baseline, got %v", err)
	}
}

func TestUnknownSourceChain(t *testing.T) {
	m := New(registry.New(testChains()), &fakePrices{}, nil)

	q := baseQuery()
	q.SourceChain = 999
	if _, err := m.FindOptimalChain(context.Background(), q); !errors.Is(err, model.ErrUnknownChain) {
		t.Fatalf("expected ErrUnknownChain, got %v", err)
	}
}

func TestZeroAmountRejected(t *testing.T) {
	m := New(registry.New(testChains()), &fakePrices{}, nil)

	q := baseQuery()
	q.AmountIn = big.NewInt(0)
	if _, err := m.FindOptimalChain(context.Background(), q); !errors.Is(err, model.ErrZeroAmount) {
		t.Fatalf("expected ErrZeroAmount, got %v", err)
	}
	q.AmountIn = nil
	if _, err := m.FindOptimalChain(context.Background(), q); !errors.Is(err, model.ErrZeroAmount) {
		t.Fatalf("expected ErrZeroAmount for nil, got %v", err)
	}
}

func TestTieBreakPrefersFasterThenLowerID(t *testing.T) {
	// Chains 10 and 137 price identically; 10 bridges in 300s vs 600s.
	m := New(registry.New(testChains()), &fakePrices{usd: map[model.ChainID]decimal.Decimal{
		1:   usd("0.005"),
		10:  usd("0.0001"),
		137: usd("0.0001"),
	}}, nil)

	res, err := m.FindOptimalChain(context.Background(), baseQuery())
	if err != nil {
		t.Fatalf("find optimal: %v", err)
	}
	if res.ChainID != 10 {
		t.Fatalf("chain = %d, want faster chain 10", res.ChainID)
	}

	// With equal bridge times the lower chain id wins.
	chains := testChains()
	chains[1].BridgeTimeSeconds = 600
	m = New(registry.New(chains), &fakePrices{usd: map[model.ChainID]decimal.Decimal{
		1:   usd("0.005"),
		10:  usd("0.0001"),
		137: usd("0.0001"),
	}}, nil)
	res, err = m.FindOptimalChain(context.Background(), baseQuery())
	if err != nil {
		t.Fatalf("find optimal: %v", err)
	}
	if res.ChainID != 10 {
		t.Fatalf("chain = %d, want lower id 10", res.ChainID)
	}
}

func TestTotalCostLocalHasNoBridgeFee(t *testing.T) {
	m := New(registry.New(testChains()), &fakePrices{usd: map[model.ChainID]decimal.Decimal{
		1: usd("0.005"),
	}}, nil)

	cb, err := m.TotalCost(context.Background(), 1, 1, 10_000, common.Address{}, common.Address{}, testAmount)
	if err != nil {
		t.Fatalf("total cost: %v", err)
	}
	if !cb.BridgeFeeUSD.Equal(decimal.Zero) {
		t.Fatalf("local bridge fee = %s, want 0", cb.BridgeFeeUSD)
	}
	if want := usd("60"); !cb.TotalCostUSD.Equal(want) {
		t.Fatalf("total = %s, want %s", cb.TotalCostUSD, want)
	}
	if cb.ExecutionTimeSeconds != 0 {
		t.Fatalf("local execution time = %d, want 0", cb.ExecutionTimeSeconds)
	}
}

func TestQuoteDeterminism(t *testing.T) {
	prices := &fakePrices{usd: map[model.ChainID]decimal.Decimal{
		1:  usd("0.005"),
		10: usd("0.0001"),
	}}
	m := New(registry.New(testChains()), prices, nil)

	first, err := m.FindOptimalChain(context.Background(), baseQuery())
	if err != nil {
		t.Fatalf("find optimal: %v", err)
	}
	second, err := m.FindOptimalChain(context.Background(), baseQuery())
	if err != nil {
		t.Fatalf("find optimal: %v", err)
	}
	if first.ChainID != second.ChainID || !first.SavingsUSD.Equal(second.SavingsUSD) {
		t.Fatalf("quotes diverged: %+v != %+v", first, second)
	}
}
