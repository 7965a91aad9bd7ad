// Package registry holds the shared, read-mostly chain metadata and the
// administrative state every other component consults.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"chainswitch/internal/model"
)

// Registry is the single owner of chain configuration, global thresholds,
// the bridge fee schedule, the keeper identity, and the global pause flag.
// Reads are unrestricted; every mutation requires an admin capability.
type Registry struct {
	mu          sync.RWMutex
	chains      map[model.ChainID]model.ChainConfig
	thresholds  model.Thresholds
	feeSchedule model.BridgeFeeSchedule
	keeperKey   string
	paused      bool
}

// New builds a Registry from the configured chains. Defaults are applied
// for thresholds and the fee schedule; use the setters to override.
func New(chains []model.ChainConfig) *Registry {
	m := make(map[model.ChainID]model.ChainConfig, len(chains))
	for _, c := range chains {
		m[c.ID] = c
	}
	return &Registry{
		chains:      m,
		thresholds:  model.DefaultThresholds(),
		feeSchedule: model.DefaultBridgeFeeSchedule(),
	}
}

// Chain returns the configuration for id.
func (r *Registry) Chain(id model.ChainID) (model.ChainConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.chains[id]
	if !ok {
		return model.ChainConfig{}, fmt.Errorf("chain %d: %w", id, model.ErrUnknownChain)
	}
	return cfg, nil
}

// Chains returns all configured chains ordered by id.
func (r *Registry) Chains() []model.ChainConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ChainConfig, 0, len(r.chains))
	for _, cfg := range r.chains {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EnabledChains returns the enabled chains ordered by id.
func (r *Registry) EnabledChains() []model.ChainConfig {
	all := r.Chains()
	out := all[:0]
	for _, cfg := range all {
		if cfg.Enabled {
			out = append(out, cfg)
		}
	}
	return out
}

// SetChain creates or replaces a chain entry. Chains are never deleted.
func (r *Registry) SetChain(cap model.Capability, cfg model.ChainConfig) error {
	if err := requireAdmin(cap); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chains[cfg.ID] = cfg
	return nil
}

// SetChainEnabled flips the enabled flag of an existing chain.
func (r *Registry) SetChainEnabled(cap model.Capability, id model.ChainID, enabled bool) error {
	if err := requireAdmin(cap); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.chains[id]
	if !ok {
		return fmt.Errorf("chain %d: %w", id, model.ErrUnknownChain)
	}
	cfg.Enabled = enabled
	r.chains[id] = cfg
	return nil
}

// Thresholds returns the current global thresholds.
func (r *Registry) Thresholds() model.Thresholds {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.thresholds
}

// SetThresholds replaces the global thresholds atomically.
func (r *Registry) SetThresholds(cap model.Capability, t model.Thresholds) error {
	if err := requireAdmin(cap); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.thresholds = t
	return nil
}

// FeeSchedule returns the current bridge fee schedule.
func (r *Registry) FeeSchedule() model.BridgeFeeSchedule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feeSchedule
}

// SetFeeSchedule replaces the bridge fee schedule atomically.
func (r *Registry) SetFeeSchedule(cap model.Capability, s model.BridgeFeeSchedule) error {
	if err := requireAdmin(cap); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeSchedule = s
	return nil
}

// Paused reports whether new swap initiations are rejected.
func (r *Registry) Paused() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused
}

// SetPaused flips the global pause switch. In-flight swaps are unaffected.
func (r *Registry) SetPaused(cap model.Capability, paused bool) error {
	if err := requireAdmin(cap); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = paused
	return nil
}

// RotateKeeper replaces the keeper authentication key.
func (r *Registry) RotateKeeper(cap model.Capability, key string) error {
	if err := requireAdmin(cap); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keeperKey = key
	return nil
}

// IsKeeperKey reports whether key matches the current keeper identity.
func (r *Registry) IsKeeperKey(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.keeperKey != "" && key == r.keeperKey
}

func requireAdmin(cap model.Capability) error {
	if cap.Role != model.RoleAdmin {
		return fmt.Errorf("admin capability required: %w", model.ErrUnauthorized)
	}
	return nil
}
