package orchestrator

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"chainswitch/internal/model"
)

// prefStore holds per-user threshold overrides. Each entry is mutated only
// by its owning user (or an administrator).
type prefStore struct {
	mu    sync.RWMutex
	prefs map[common.Address]model.UserPreferences
}

func newPrefStore() *prefStore {
	return &prefStore{prefs: make(map[common.Address]model.UserPreferences)}
}

func (p *prefStore) get(user common.Address) (model.UserPreferences, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	prefs, ok := p.prefs[user]
	return prefs, ok
}

func (p *prefStore) set(cap model.Capability, user common.Address, prefs model.UserPreferences) error {
	if cap.Role != model.RoleAdmin && !(cap.Role == model.RoleUser && cap.Actor == user) {
		return fmt.Errorf("preferences owned by %s: %w", user.Hex(), model.ErrUnauthorized)
	}
	p.mu.Lock()
	p.prefs[user] = prefs
	p.mu.Unlock()
	return nil
}

// SetPreferences stores threshold overrides for user.
func (o *Orchestrator) SetPreferences(cap model.Capability, user common.Address, prefs model.UserPreferences) error {
	return o.prefs.set(cap, user, prefs)
}

// Preferences returns the stored overrides for user, if any.
func (o *Orchestrator) Preferences(user common.Address) (model.UserPreferences, bool) {
	return o.prefs.get(user)
}

// effectiveThresholds folds user overrides into the global thresholds.
func (o *Orchestrator) effectiveThresholds(user common.Address) (model.Thresholds, bool) {
	t := o.registry.Thresholds()
	prefs, ok := o.prefs.get(user)
	if !ok {
		return t, false
	}
	if prefs.MinSavingsBPS != nil {
		t.MinSavingsBPS = *prefs.MinSavingsBPS
	}
	if prefs.MinAbsoluteSavingsUSD != nil {
		t.MinAbsoluteSavingsUSD = *prefs.MinAbsoluteSavingsUSD
	}
	if prefs.MaxBridgeTimeSeconds != nil {
		t.MaxBridgeTimeSeconds = *prefs.MaxBridgeTimeSeconds
	}
	return t, prefs.OptimizationDisabled
}
