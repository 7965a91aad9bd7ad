package registry

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"chainswitch/internal/model"
)

var (
	admin  = model.Capability{Role: model.RoleAdmin}
	keeper = model.Capability{Role: model.RoleKeeper}
	user   = model.Capability{Role: model.RoleUser}
)

func newTestRegistry() *Registry {
	return New([]model.ChainConfig{
		{ID: 137, Name: "polygon", Enabled: true},
		{ID: 1, Name: "mainnet", Enabled: true},
		{ID: 56, Name: "bsc", Enabled: false},
	})
}

func TestChainLookup(t *testing.T) {
	r := newTestRegistry()

	cfg, err := r.Chain(1)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if cfg.Name != "mainnet" {
		t.Fatalf("name = %q, want mainnet", cfg.Name)
	}

	if _, err := r.Chain(999); !errors.Is(err, model.ErrUnknownChain) {
		t.Fatalf("expected ErrUnknownChain, got %v", err)
	}
}

func TestChainsSortedByID(t *testing.T) {
	r := newTestRegistry()

	all := r.Chains()
	if len(all) != 3 {
		t.Fatalf("chains = %d, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Fatalf("chains not sorted: %v", all)
		}
	}

	enabled := r.EnabledChains()
	if len(enabled) != 2 {
		t.Fatalf("enabled chains = %d, want 2", len(enabled))
	}
	for _, c := range enabled {
		if !c.Enabled {
			t.Fatalf("disabled chain %d in enabled list", c.ID)
		}
	}
}

func TestAdminGating(t *testing.T) {
	r := newTestRegistry()

	for name, fn := range map[string]func(model.Capability) error{
		"set paused": func(c model.Capability) error { return r.SetPaused(c, true) },
		"set chain": func(c model.Capability) error {
			return r.SetChain(c, model.ChainConfig{ID: 42161, Name: "arbitrum"})
		},
		"set chain enabled":  func(c model.Capability) error { return r.SetChainEnabled(c, 1, false) },
		"set thresholds":     func(c model.Capability) error { return r.SetThresholds(c, model.DefaultThresholds()) },
		"set fee schedule":   func(c model.Capability) error { return r.SetFeeSchedule(c, model.DefaultBridgeFeeSchedule()) },
		"rotate keeper key":  func(c model.Capability) error { return r.RotateKeeper(c, "key") },
	} {
		if err := fn(user); !errors.Is(err, model.ErrUnauthorized) {
			t.Fatalf("%s as user: got %v", name, err)
		}
		if err := fn(keeper); !errors.Is(err, model.ErrUnauthorized) {
			t.Fatalf("%s as keeper: got %v", name, err)
		}
		if err := fn(admin); err != nil {
			t.Fatalf("%s as admin: %v", name, err)
		}
	}
}

func TestSetChainEnabled(t *testing.T) {
	r := newTestRegistry()

	if err := r.SetChainEnabled(admin, 1, false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	cfg, err := r.Chain(1)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if cfg.Enabled {
		t.Fatalf("chain 1 still enabled")
	}

	if err := r.SetChainEnabled(admin, 999, true); !errors.Is(err, model.ErrUnknownChain) {
		t.Fatalf("expected ErrUnknownChain, got %v", err)
	}
}

func TestSetThresholds(t *testing.T) {
	r := newTestRegistry()

	want := model.DefaultThresholds()
	want.MinSavingsBPS = 250
	want.MinAbsoluteSavingsUSD = decimal.NewFromInt(5)
	if err := r.SetThresholds(admin, want); err != nil {
		t.Fatalf("set thresholds: %v", err)
	}

	got := r.Thresholds()
	if got.MinSavingsBPS != 250 || !got.MinAbsoluteSavingsUSD.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("thresholds = %+v", got)
	}
}

func TestKeeperKeyRotation(t *testing.T) {
	r := newTestRegistry()

	if r.IsKeeperKey("") {
		t.Fatalf("empty key must never match")
	}

	if err := r.RotateKeeper(admin, "first"); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if !r.IsKeeperKey("first") {
		t.Fatalf("first key not accepted")
	}

	if err := r.RotateKeeper(admin, "second"); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if r.IsKeeperKey("first") {
		t.Fatalf("rotated-out key still accepted")
	}
	if !r.IsKeeperKey("second") {
		t.Fatalf("second key not accepted")
	}
}

func TestPause(t *testing.T) {
	r := newTestRegistry()

	if r.Paused() {
		t.Fatalf("registry starts paused")
	}
	if err := r.SetPaused(admin, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !r.Paused() {
		t.Fatalf("pause did not take effect")
	}
	if err := r.SetPaused(admin, false); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if r.Paused() {
		t.Fatalf("unpause did not take effect")
	}
}
