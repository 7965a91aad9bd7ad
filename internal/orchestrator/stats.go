package orchestrator

import (
	"sync"

	"chainswitch/internal/model"
)

// statsBook keeps the rolling per-chain aggregates.
type statsBook struct {
	mu    sync.Mutex
	stats map[model.ChainID]*model.ChainStats
}

func newStatsBook() *statsBook {
	return &statsBook{stats: make(map[model.ChainID]*model.ChainStats)}
}

func (b *statsBook) recordInitiated(chainID model.ChainID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.get(chainID).TotalSwaps++
}

// recordTerminal folds a terminal outcome into the chain's aggregates.
// execSeconds only contributes to the rolling average on completion.
func (b *statsBook) recordTerminal(chainID model.ChainID, status model.SwapStatus, execSeconds float64) model.ChainStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.get(chainID)
	switch status {
	case model.StatusCompleted:
		prev := float64(s.SuccessfulSwaps)
		s.SuccessfulSwaps++
		s.AvgExecutionSeconds = (s.AvgExecutionSeconds*prev + execSeconds) / float64(s.SuccessfulSwaps)
	case model.StatusFailed:
		s.FailedSwaps++
	case model.StatusRecovered:
		s.RecoveredSwaps++
	}
	return *s
}

func (b *statsBook) snapshot(chainID model.ChainID) model.ChainStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *b.get(chainID)
}

func (b *statsBook) all() []model.ChainStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.ChainStats, 0, len(b.stats))
	for _, s := range b.stats {
		out = append(out, *s)
	}
	return out
}

func (b *statsBook) get(chainID model.ChainID) *model.ChainStats {
	s, ok := b.stats[chainID]
	if !ok {
		s = &model.ChainStats{ChainID: chainID}
		b.stats[chainID] = s
	}
	return s
}
