// Package bridge defines the bridging collaborator contract and its HTTP
// implementation. The bridge's own security model is out of scope; only the
// request/response surface matters to the orchestrator.
package bridge

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"chainswitch/internal/model"
)

// Quote is the bridge's fee and time estimate for one transfer.
type Quote struct {
	FeeUSD               decimal.Decimal `json:"fee_usd"`
	EstimatedTimeSeconds uint64          `json:"estimated_time_seconds"`
}

// Status reports the progress of a transfer by reference id.
type Status struct {
	Completed    bool     `json:"completed"`
	Failed       bool     `json:"failed"`
	FilledAmount *big.Int `json:"filled_amount"`
}

// TransferRequest describes one value movement toward a destination chain.
type TransferRequest struct {
	Depositor        common.Address `json:"depositor"`
	Recipient        common.Address `json:"recipient"`
	Token            common.Address `json:"token"`
	Amount           *big.Int       `json:"amount"`
	DestinationChain model.ChainID  `json:"destination_chain"`
	Message          []byte         `json:"message,omitempty"`
}

// Client is the bridge collaborator. Any returned error is treated by the
// orchestrator as driving the swap to Failed, never as a silent no-op.
type Client interface {
	Quote(ctx context.Context, token common.Address, amount *big.Int, dest model.ChainID) (Quote, error)
	Transfer(ctx context.Context, req TransferRequest) (string, error)
	Status(ctx context.Context, ref string) (Status, error)
}
