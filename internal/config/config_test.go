package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Fatalf("listen = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.Thresholds.MinSavingsBPS != 500 {
		t.Fatalf("min savings bps = %d, want 500", cfg.Thresholds.MinSavingsBPS)
	}
	if cfg.Thresholds.RecoveryTimeoutSeconds != 3600 {
		t.Fatalf("recovery timeout = %d, want 3600", cfg.Thresholds.RecoveryTimeoutSeconds)
	}
	if cfg.Thresholds.GasSafetyMargin.String() != "1.2" {
		t.Fatalf("gas safety margin = %s, want 1.2", cfg.Thresholds.GasSafetyMargin)
	}
	if cfg.FeeSchedule.FeeBPS != 8 {
		t.Fatalf("fee bps = %d, want 8", cfg.FeeSchedule.FeeBPS)
	}
	if len(cfg.Chains) != 0 {
		t.Fatalf("chains = %d, want none by default", len(cfg.Chains))
	}
}

func TestLoadChainsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
listen: ":9090"
admin-key: "secret"
chains:
  - id: 1
    name: mainnet
    enabled: true
    block_time_seconds: 12
    finality_time_seconds: 780
    bridge_time_seconds: 900
    max_gas_price_gwei: 500
    congestion_low_gwei: 20
    congestion_medium_gwei: 50
    congestion_high_gwei: 100
    native_asset_id: ethereum
    rpc_url: "https://rpc.example"
  - id: 137
    name: polygon
    enabled: false
    native_asset_id: matic
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("listen = %q, want :9090", cfg.ListenAddr)
	}
	if cfg.AdminKey != "secret" {
		t.Fatalf("admin key = %q", cfg.AdminKey)
	}
	if len(cfg.Chains) != 2 {
		t.Fatalf("chains = %d, want 2", len(cfg.Chains))
	}

	mainnet := cfg.Chains[0]
	if mainnet.ID != 1 || !mainnet.Enabled || mainnet.NativeAssetID != "ethereum" {
		t.Fatalf("mainnet = %+v", mainnet)
	}
	wantMax := new(big.Int).Mul(big.NewInt(500), big.NewInt(1e9))
	if mainnet.MaxGasPriceWei == nil || mainnet.MaxGasPriceWei.Cmp(wantMax) != 0 {
		t.Fatalf("max gas price = %v, want %s", mainnet.MaxGasPriceWei, wantMax)
	}

	polygon := cfg.Chains[1]
	if polygon.Enabled {
		t.Fatalf("polygon should be disabled")
	}
	if polygon.MaxGasPriceWei != nil {
		t.Fatalf("unset gwei fields must stay nil, got %s", polygon.MaxGasPriceWei)
	}
}

func TestLoadRejectsChainWithoutID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "chains:\n  - name: broken\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path, nil); err == nil {
		t.Fatalf("expected error for chain entry without id")
	}
}

func TestGweiToWei(t *testing.T) {
	if got := gweiToWei(0); got != nil {
		t.Fatalf("zero gwei = %v, want nil", got)
	}
	want := new(big.Int).Mul(big.NewInt(30), big.NewInt(1e9))
	if got := gweiToWei(30); got.Cmp(want) != 0 {
		t.Fatalf("30 gwei = %s, want %s", got, want)
	}
}
