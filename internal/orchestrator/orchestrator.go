// Package orchestrator drives cross-chain swaps through a deterministic state
// machine with per-swap-id serialization and a time-boxed recovery path.
package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"chainswitch/internal/bridge"
	"chainswitch/internal/costmodel"
	"chainswitch/internal/metrics"
	"chainswitch/internal/model"
	"chainswitch/internal/registry"
)

// Store persists swap records and chain aggregates. The in-memory state is
// authoritative; persistence is write-behind and failures only log.
type Store interface {
	SaveSwap(ctx context.Context, rec *model.SwapRecord) error
	UpdateSwap(ctx context.Context, rec *model.SwapRecord) error
	UpsertChainStats(ctx context.Context, stats model.ChainStats) error
}

// Orchestrator owns every SwapRecord and is the only writer of their state.
// Published records are immutable: every update clones the current record,
// applies the change, and swaps the map entry, so readers holding only the
// map lock always see a fully consistent snapshot.
type Orchestrator struct {
	registry *registry.Registry
	model    *costmodel.Model
	bridge   bridge.Client
	store    Store
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
	nonce    atomic.Uint64

	locks *keyedLocks
	stats *statsBook
	prefs *prefStore

	mu     sync.RWMutex
	swaps  map[string]*model.SwapRecord
	byUser map[common.Address][]string
}

// New builds an Orchestrator. store and m may be nil.
func New(reg *registry.Registry, cost *costmodel.Model, bridgeClient bridge.Client, store Store, m *metrics.Metrics, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		registry: reg,
		model:    cost,
		bridge:   bridgeClient,
		store:    store,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		locks:    newKeyedLocks(),
		stats:    newStatsBook(),
		prefs:    newPrefStore(),
		swaps:    make(map[string]*model.SwapRecord),
		byUser:   make(map[common.Address][]string),
	}
}

// SetNowFunc overrides the clock, for tests.
func (o *Orchestrator) SetNowFunc(now func() time.Time) { o.now = now }

// InitiateParams describes one committed cross-chain swap request.
type InitiateParams struct {
	User             common.Address
	TokenIn          common.Address
	TokenOut         common.Address
	AmountIn         *big.Int
	SourceChain      model.ChainID
	DestinationChain model.ChainID
	Deadline         time.Time
}

// Initiate validates the request, creates the swap record, and starts the
// outbound bridge transfer. Validation failures reject before any state is
// created. The record is created already Bridging; there is no queued
// sub-state visible to callers.
func (o *Orchestrator) Initiate(ctx context.Context, params InitiateParams) (*model.SwapRecord, error) {
	if o.registry.Paused() {
		return nil, model.ErrOperationsPaused
	}
	if params.User == (common.Address{}) {
		return nil, model.ErrEmptyUser
	}
	if params.AmountIn == nil || params.AmountIn.Sign() <= 0 {
		return nil, model.ErrZeroAmount
	}
	now := o.now().UTC()
	if !params.Deadline.After(now) {
		return nil, model.ErrExpiredDeadline
	}
	if _, err := o.registry.Chain(params.SourceChain); err != nil {
		return nil, err
	}
	dest, err := o.registry.Chain(params.DestinationChain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidDestinationChain, err)
	}
	if !dest.Enabled {
		return nil, fmt.Errorf("chain %d disabled: %w", dest.ID, model.ErrInvalidDestinationChain)
	}

	id := swapID(params.User, params.TokenIn, params.TokenOut, params.AmountIn.Bytes(),
		params.SourceChain, params.DestinationChain, o.nonce.Add(1))

	rec := &model.SwapRecord{
		ID:          id,
		User:        params.User,
		TokenIn:     params.TokenIn,
		TokenOut:    params.TokenOut,
		AmountIn:    new(big.Int).Set(params.AmountIn),
		AmountOut:   new(big.Int),
		SourceChain: params.SourceChain,
		DestChain:   params.DestinationChain,
		InitiatedAt: now,
	}

	o.locks.lock(id)
	o.mu.Lock()
	if _, exists := o.swaps[id]; exists {
		o.mu.Unlock()
		o.locks.unlock(id)
		return nil, fmt.Errorf("swap id %s already exists", id)
	}
	// Published directly in Bridging so the construction state is never
	// observable through lookups.
	rec.Status = model.StatusBridging
	o.swaps[id] = rec
	o.byUser[params.User] = append(o.byUser[params.User], id)
	o.mu.Unlock()
	o.locks.unlock(id)

	o.stats.recordInitiated(params.SourceChain)
	o.persist(ctx, rec, true)

	// Bridge I/O happens without holding the swap lock.
	ref, err := o.bridge.Transfer(ctx, bridge.TransferRequest{
		Depositor:        params.User,
		Recipient:        params.User,
		Token:            params.TokenIn,
		Amount:           params.AmountIn,
		DestinationChain: params.DestinationChain,
	})
	o.metrics.ObserveBridgeCall("transfer", err)

	o.locks.lock(id)
	defer o.locks.unlock(id)
	cur, aerr := o.activeRecord(id)
	if aerr != nil {
		// The swap reached a terminal state while the transfer was in
		// flight (an admin recovery, typically); leave it untouched.
		if err != nil {
			return nil, fmt.Errorf("outbound bridge transfer: %w", err)
		}
		return nil, aerr
	}
	if err != nil {
		cur = o.transitionLocked(ctx, cur, model.StatusFailed, fmt.Sprintf("outbound bridge: %v", err))
		return cur.Clone(), fmt.Errorf("outbound bridge transfer: %w", err)
	}
	cur = o.commitLocked(ctx, cur, func(r *model.SwapRecord) { r.BridgeRef = ref })

	o.logger.Info("swap initiated",
		zap.String("swap_id", id),
		zap.String("user", params.User.Hex()),
		zap.Uint64("source_chain", uint64(params.SourceChain)),
		zap.Uint64("dest_chain", uint64(params.DestinationChain)),
		zap.String("bridge_ref", ref),
	)
	return cur.Clone(), nil
}

// HandleDestinationSwap records the remote execution outcome. Valid only
// while the swap is Bridging: success moves it through Swapping into
// BridgingBack (starting the return transfer), failure moves it to Failed.
func (o *Orchestrator) HandleDestinationSwap(ctx context.Context, id string, result model.DestinationResult) (*model.SwapRecord, error) {
	o.locks.lock(id)
	rec, err := o.activeRecord(id)
	if err != nil {
		o.locks.unlock(id)
		return nil, err
	}
	if rec.Status != model.StatusBridging {
		status := rec.Status
		o.locks.unlock(id)
		return nil, fmt.Errorf("destination result in state %s: %w", status, model.ErrInvalidStateTransition)
	}

	if !result.Success {
		rec = o.transitionLocked(ctx, rec, model.StatusFailed, result.Reason)
		out := rec.Clone()
		o.locks.unlock(id)
		return out, nil
	}

	if result.AmountOut != nil {
		rec = o.commitLocked(ctx, rec, func(r *model.SwapRecord) {
			r.AmountOut = new(big.Int).Set(result.AmountOut)
		})
	}
	rec = o.transitionLocked(ctx, rec, model.StatusSwapping, "")
	returnLeg := bridge.TransferRequest{
		Depositor:        rec.User,
		Recipient:        rec.User,
		Token:            rec.TokenOut,
		Amount:           new(big.Int).Set(rec.AmountOut),
		DestinationChain: rec.SourceChain,
	}
	o.locks.unlock(id)

	// Return bridging starts immediately after the remote swap is recorded.
	ref, err := o.bridge.Transfer(ctx, returnLeg)
	o.metrics.ObserveBridgeCall("transfer", err)

	o.locks.lock(id)
	defer o.locks.unlock(id)
	cur, aerr := o.activeRecord(id)
	if aerr != nil {
		// Recovered or failed while the return transfer was in flight; the
		// terminal record keeps its last committed reference.
		if err != nil {
			return nil, fmt.Errorf("return bridge transfer: %w", err)
		}
		return nil, aerr
	}
	if err != nil {
		cur = o.transitionLocked(ctx, cur, model.StatusFailed, fmt.Sprintf("return bridge: %v", err))
		return cur.Clone(), fmt.Errorf("return bridge transfer: %w", err)
	}
	if !cur.Status.CanTransition(model.StatusBridgingBack) {
		return cur.Clone(), fmt.Errorf("return bridge landed in state %s: %w", cur.Status, model.ErrInvalidStateTransition)
	}
	cur = o.commitLocked(ctx, cur, func(r *model.SwapRecord) { r.BridgeRef = ref })
	cur = o.transitionLocked(ctx, cur, model.StatusBridgingBack, "")
	return cur.Clone(), nil
}

// Complete finalizes a swap whose return transfer has landed. Valid only
// from BridgingBack; every other state fails with ErrInvalidStateTransition.
func (o *Orchestrator) Complete(ctx context.Context, id string) (*model.SwapRecord, error) {
	o.locks.lock(id)
	defer o.locks.unlock(id)

	rec, err := o.activeRecord(id)
	if err != nil {
		return nil, err
	}
	if rec.Status != model.StatusBridgingBack {
		return nil, fmt.Errorf("complete in state %s: %w", rec.Status, model.ErrInvalidStateTransition)
	}

	rec = o.transitionLocked(ctx, rec, model.StatusCompleted, "")
	o.logger.Info("swap completed",
		zap.String("swap_id", id),
		zap.Duration("elapsed", rec.CompletedAt.Sub(rec.InitiatedAt)),
	)
	return rec.Clone(), nil
}

// EmergencyRecovery moves a stuck swap to Recovered and triggers the refund
// unwind. The swap's own user may recover only after the configured timeout
// has elapsed since initiation; an administrator may recover at any time.
func (o *Orchestrator) EmergencyRecovery(ctx context.Context, cap model.Capability, id string) (*model.SwapRecord, error) {
	o.locks.lock(id)
	rec, err := o.activeRecord(id)
	if err != nil {
		o.locks.unlock(id)
		return nil, err
	}

	switch cap.Role {
	case model.RoleAdmin:
	case model.RoleUser:
		if cap.Actor != rec.User {
			o.locks.unlock(id)
			return nil, fmt.Errorf("swap belongs to %s: %w", rec.User.Hex(), model.ErrUnauthorized)
		}
		timeout := time.Duration(o.registry.Thresholds().RecoveryTimeoutSeconds) * time.Second
		if elapsed := o.now().UTC().Sub(rec.InitiatedAt); elapsed <= timeout {
			o.locks.unlock(id)
			return nil, fmt.Errorf("elapsed %s of %s: %w", elapsed, timeout, model.ErrRecoveryTooEarly)
		}
	default:
		o.locks.unlock(id)
		return nil, fmt.Errorf("recovery requires user or admin capability: %w", model.ErrUnauthorized)
	}

	rec = o.transitionLocked(ctx, rec, model.StatusRecovered, "emergency recovery")
	out := rec.Clone()
	o.locks.unlock(id)

	// Refund unwind happens after the terminal state is committed; a failed
	// refund call is logged and retried operationally, the record stays
	// Recovered either way.
	_, err = o.bridge.Transfer(ctx, bridge.TransferRequest{
		Depositor:        out.User,
		Recipient:        out.User,
		Token:            out.TokenIn,
		Amount:           out.AmountIn,
		DestinationChain: out.SourceChain,
		Message:          []byte("refund:" + id),
	})
	o.metrics.ObserveBridgeCall("transfer", err)
	if err != nil {
		o.logger.Error("refund transfer failed", zap.String("swap_id", id), zap.Error(err))
	}

	o.logger.Warn("swap recovered",
		zap.String("swap_id", id),
		zap.String("by", cap.Role.String()),
	)
	return out, nil
}

// WatchBridge polls the bridge status of the swap's current transfer until a
// terminal condition: a failed transfer drives the swap to Failed; a completed
// return transfer completes the swap. An outbound transfer landing is logged
// once and the watcher keeps waiting for the destination result, which is
// what advances the record.
func (o *Orchestrator) WatchBridge(ctx context.Context, id string, interval time.Duration) error {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var landedRef string
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		rec, err := o.Swap(id)
		if err != nil {
			return err
		}
		if rec.Status.Terminal() {
			return nil
		}
		if rec.BridgeRef == "" || rec.BridgeRef == landedRef {
			continue
		}

		status, err := o.bridge.Status(ctx, rec.BridgeRef)
		o.metrics.ObserveBridgeCall("status", err)
		if err != nil {
			o.failSwap(ctx, id, fmt.Sprintf("bridge status: %v", err))
			return err
		}
		if status.Failed {
			o.failSwap(ctx, id, "bridge transfer failed")
			return nil
		}
		if !status.Completed {
			continue
		}
		if rec.Status == model.StatusBridgingBack {
			if _, err := o.Complete(ctx, id); err != nil {
				return err
			}
			return nil
		}
		landedRef = rec.BridgeRef
		o.logger.Info("outbound transfer landed",
			zap.String("swap_id", id),
			zap.String("bridge_ref", rec.BridgeRef),
		)
	}
}

// Swap returns a copy of the record for id.
func (o *Orchestrator) Swap(id string) (*model.SwapRecord, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	rec, ok := o.swaps[id]
	if !ok {
		return nil, fmt.Errorf("swap %s: %w", id, model.ErrSwapNotFound)
	}
	return rec.Clone(), nil
}

// SwapsByUser returns the ids of user's non-terminal swaps.
func (o *Orchestrator) SwapsByUser(user common.Address) []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ids := o.byUser[user]
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if rec, ok := o.swaps[id]; ok && !rec.Status.Terminal() {
			out = append(out, id)
		}
	}
	return out
}

// ChainStats returns the aggregates for one source chain.
func (o *Orchestrator) ChainStats(chainID model.ChainID) model.ChainStats {
	return o.stats.snapshot(chainID)
}

// AllChainStats returns aggregates for every chain seen so far.
func (o *Orchestrator) AllChainStats() []model.ChainStats {
	return o.stats.all()
}

func (o *Orchestrator) activeRecord(id string) (*model.SwapRecord, error) {
	o.mu.RLock()
	rec, ok := o.swaps[id]
	o.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("swap %s: %w", id, model.ErrSwapNotFound)
	}
	if rec.Status.Terminal() {
		return nil, fmt.Errorf("swap %s is %s: %w", id, rec.Status, model.ErrSwapNotActive)
	}
	return rec, nil
}

func (o *Orchestrator) failSwap(ctx context.Context, id, reason string) {
	o.locks.lock(id)
	defer o.locks.unlock(id)
	rec, err := o.activeRecord(id)
	if err != nil {
		return
	}
	o.transitionLocked(ctx, rec, model.StatusFailed, reason)
	o.logger.Warn("swap failed", zap.String("swap_id", id), zap.String("reason", reason))
}

// commitLocked publishes an updated copy of rec. The previously published
// record is never mutated, so concurrent lookups see either the old or the
// new snapshot, never a mix. The caller must hold the swap's key lock.
func (o *Orchestrator) commitLocked(ctx context.Context, rec *model.SwapRecord, mutate func(*model.SwapRecord)) *model.SwapRecord {
	up := rec.Clone()
	mutate(up)
	o.mu.Lock()
	o.swaps[up.ID] = up
	o.mu.Unlock()
	o.persist(ctx, up, false)
	return up
}

// transitionLocked commits a state change and returns the published record.
// The caller must hold the swap's key lock and have validated the transition
// against the current state.
func (o *Orchestrator) transitionLocked(ctx context.Context, rec *model.SwapRecord, next model.SwapStatus, reason string) *model.SwapRecord {
	if !rec.Status.CanTransition(next) {
		// Callers validate first; reaching this is a programming error.
		o.logger.Error("illegal transition attempt",
			zap.String("swap_id", rec.ID),
			zap.String("from", rec.Status.String()),
			zap.String("to", next.String()),
		)
		return rec
	}

	up := o.commitLocked(ctx, rec, func(r *model.SwapRecord) {
		r.Status = next
		if reason != "" && (next == model.StatusFailed || next == model.StatusRecovered) {
			r.FailReason = reason
		}
		if next.Terminal() {
			r.CompletedAt = o.now().UTC()
		}
	})

	if next.Terminal() {
		exec := up.CompletedAt.Sub(up.InitiatedAt).Seconds()
		stats := o.stats.recordTerminal(up.SourceChain, next, exec)
		o.metrics.ObserveSwapTerminal(up.SourceChain, next, exec)
		if o.store != nil {
			if err := o.store.UpsertChainStats(ctx, stats); err != nil {
				o.logger.Warn("persist chain stats", zap.Error(err))
			}
		}
	}
	return up
}

func (o *Orchestrator) persist(ctx context.Context, rec *model.SwapRecord, insert bool) {
	if o.store == nil {
		return
	}
	var err error
	if insert {
		err = o.store.SaveSwap(ctx, rec.Clone())
	} else {
		err = o.store.UpdateSwap(ctx, rec.Clone())
	}
	if err != nil {
		o.logger.Warn("persist swap", zap.String("swap_id", rec.ID), zap.Error(err))
	}
}
