package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SwapStatus is the state machine tag of a cross-chain swap.
type SwapStatus int

const (
	StatusInitiated SwapStatus = iota
	StatusBridging
	StatusSwapping
	StatusBridgingBack
	StatusCompleted
	StatusFailed
	StatusRecovered
)

var statusNames = map[SwapStatus]string{
	StatusInitiated:    "initiated",
	StatusBridging:     "bridging",
	StatusSwapping:     "swapping",
	StatusBridgingBack: "bridging_back",
	StatusCompleted:    "completed",
	StatusFailed:       "failed",
	StatusRecovered:    "recovered",
}

func (s SwapStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the status admits no further transitions.
func (s SwapStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusRecovered
}

var allowedTransitions = map[SwapStatus][]SwapStatus{
	StatusInitiated:    {StatusBridging, StatusFailed, StatusRecovered},
	StatusBridging:     {StatusSwapping, StatusFailed, StatusRecovered},
	StatusSwapping:     {StatusBridgingBack, StatusFailed, StatusRecovered},
	StatusBridgingBack: {StatusCompleted, StatusFailed, StatusRecovered},
}

// CanTransition reports whether the move from s to next is legal.
func (s SwapStatus) CanTransition(next SwapStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SwapRecord tracks one cross-chain swap attempt. There is exactly one record
// per swap id and ids are never reused.
type SwapRecord struct {
	ID          string         `json:"id"`
	User        common.Address `json:"user"`
	TokenIn     common.Address `json:"token_in"`
	TokenOut    common.Address `json:"token_out"`
	AmountIn    *big.Int       `json:"amount_in"`
	AmountOut   *big.Int       `json:"amount_out"`
	SourceChain ChainID        `json:"source_chain"`
	DestChain   ChainID        `json:"dest_chain"`
	InitiatedAt time.Time      `json:"initiated_at"`
	CompletedAt time.Time      `json:"completed_at"`
	Status      SwapStatus     `json:"status"`
	BridgeRef   string         `json:"bridge_ref"`
	FailReason  string         `json:"fail_reason,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate orchestrator state.
func (r *SwapRecord) Clone() *SwapRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.AmountIn != nil {
		out.AmountIn = new(big.Int).Set(r.AmountIn)
	}
	if r.AmountOut != nil {
		out.AmountOut = new(big.Int).Set(r.AmountOut)
	}
	return &out
}

// SwapIntent describes a desired exchange before any chain decision is made.
type SwapIntent struct {
	User        common.Address `json:"user"`
	TokenIn     common.Address `json:"token_in"`
	TokenOut    common.Address `json:"token_out"`
	AmountIn    *big.Int       `json:"amount_in"`
	SourceChain ChainID        `json:"source_chain"`
	GasUnits    uint64         `json:"gas_units"`
}

// DestinationResult carries the outcome of the remote swap execution.
type DestinationResult struct {
	Success   bool     `json:"success"`
	AmountOut *big.Int `json:"amount_out"`
	Reason    string   `json:"reason,omitempty"`
}
