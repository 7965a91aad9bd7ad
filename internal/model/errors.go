package model

import "errors"

// Validation errors: rejected before any state mutation, safe to retry after fixing input.
var (
	ErrEmptyUser               = errors.New("user address is empty")
	ErrZeroAmount              = errors.New("amount must be greater than zero")
	ErrExpiredDeadline         = errors.New("deadline already passed")
	ErrUnknownChain            = errors.New("unknown chain")
	ErrChainDisabled           = errors.New("chain disabled")
	ErrInvalidDestinationChain = errors.New("invalid destination chain")
)

// Staleness errors: recoverable by retrying later; quoting falls back to "do not optimize".
var (
	ErrStalePrice           = errors.New("gas price sample is stale")
	ErrPriceFeedUnavailable = errors.New("price feed unavailable")
	ErrPriceOutOfBounds     = errors.New("gas price outside accepted bounds")
)

// State machine errors: caller misuse or a lost race, never silently ignored.
var (
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrSwapNotFound           = errors.New("swap not found")
	ErrSwapNotActive          = errors.New("swap already reached a terminal state")
	ErrRecoveryTooEarly       = errors.New("recovery timeout not reached")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrOperationsPaused       = errors.New("operations paused")
)

// External dependency errors surfaced by the bridge collaborator.
var (
	ErrUnsupportedChain  = errors.New("bridge does not support chain")
	ErrAmountOutOfBounds = errors.New("bridge amount out of bounds")
)
