// Package keeper runs the in-process gas price keeper: it polls each
// configured chain RPC on a schedule and advances the oracle through the
// keeper capability, independent of swap processing.
package keeper

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"chainswitch/internal/chain"
	"chainswitch/internal/metrics"
	"chainswitch/internal/model"
	"chainswitch/internal/oracle"
	"chainswitch/internal/registry"
)

// Config holds runtime settings for the poller.
type Config struct {
	Interval     time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Poller feeds the oracle from per-chain RPC endpoints.
type Poller struct {
	cfg      Config
	registry *registry.Registry
	oracle   *oracle.Oracle
	metrics  *metrics.Metrics
	logger   *zap.Logger

	clients map[model.ChainID]*chain.Client
}

// NewPoller dials every configured chain that has an RPC URL. Chains without
// one are skipped; their prices must arrive through the keeper HTTP path.
func NewPoller(ctx context.Context, cfg Config, reg *registry.Registry, o *oracle.Oracle, m *metrics.Metrics, logger *zap.Logger) (*Poller, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}

	clients := make(map[model.ChainID]*chain.Client)
	for _, c := range reg.Chains() {
		if c.RPCURL == "" {
			continue
		}
		client, err := chain.NewClient(ctx, c.RPCURL)
		if err != nil {
			for _, open := range clients {
				open.Close()
			}
			return nil, fmt.Errorf("dial chain %d: %w", c.ID, err)
		}
		clients[c.ID] = client
	}

	return &Poller{
		cfg:      cfg,
		registry: reg,
		oracle:   o,
		metrics:  m,
		logger:   logger,
		clients:  clients,
	}, nil
}

// Close releases all RPC connections.
func (p *Poller) Close() {
	for _, client := range p.clients {
		client.Close()
	}
}

// Run polls until the context is cancelled. Individual chain failures are
// logged and retried on the next tick; they never stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	if len(p.clients) == 0 {
		p.logger.Info("keeper poller idle, no chains with rpc urls")
		<-ctx.Done()
		return ctx.Err()
	}

	p.logger.Info("keeper poller start",
		zap.Int("chains", len(p.clients)),
		zap.Duration("interval", p.cfg.Interval),
	)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.pollAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.pollAll(ctx)
		}
	}
}

func (p *Poller) pollAll(ctx context.Context) {
	cap := model.KeeperCapability()
	for chainID, client := range p.clients {
		price, attempts, err := p.suggestGasPriceWithRetry(ctx, client)
		if err != nil {
			p.logger.Warn("gas price poll failed",
				zap.Uint64("chain", uint64(chainID)),
				zap.Int("attempts", attempts),
				zap.Error(err),
			)
			continue
		}
		if err := p.oracle.Update(cap, chainID, price); err != nil {
			p.logger.Warn("oracle update rejected", zap.Uint64("chain", uint64(chainID)), zap.Error(err))
			continue
		}
		f, _ := new(big.Float).SetInt(price).Float64()
		p.metrics.ObserveGasPrice(chainID, f)
		p.logger.Debug("gas price polled",
			zap.Uint64("chain", uint64(chainID)),
			zap.String("price_wei", price.String()),
		)
	}
}

func (p *Poller) suggestGasPriceWithRetry(ctx context.Context, client *chain.Client) (*big.Int, int, error) {
	var price *big.Int
	attempts, err := pollRetry(ctx, p.cfg, func(ctx context.Context) error {
		var err error
		price, err = client.SuggestGasPrice(ctx)
		return err
	})
	return price, attempts, err
}
