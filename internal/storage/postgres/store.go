// Package postgres persists swap records and chain aggregates. The
// orchestrator's in-memory state stays authoritative; this store is the
// durable journal and read surface for historical swaps.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chainswitch/internal/model"
)

// Store provides Postgres persistence for swaps and statistics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Init creates the schema if it does not exist.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS swaps (
			id TEXT PRIMARY KEY,
			user_address TEXT NOT NULL,
			token_in TEXT NOT NULL,
			token_out TEXT NOT NULL,
			amount_in NUMERIC NOT NULL,
			amount_out NUMERIC NOT NULL DEFAULT 0,
			source_chain BIGINT NOT NULL,
			dest_chain BIGINT NOT NULL,
			initiated_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ,
			status TEXT NOT NULL,
			bridge_ref TEXT NOT NULL DEFAULT '',
			fail_reason TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS swaps_user_idx ON swaps (user_address);
		CREATE TABLE IF NOT EXISTS chain_stats (
			chain_id BIGINT PRIMARY KEY,
			total_swaps BIGINT NOT NULL,
			successful_swaps BIGINT NOT NULL,
			failed_swaps BIGINT NOT NULL,
			recovered_swaps BIGINT NOT NULL,
			avg_execution_seconds DOUBLE PRECISION NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	return err
}

// SaveSwap inserts a new swap record.
func (s *Store) SaveSwap(ctx context.Context, rec *model.SwapRecord) error {
	if rec == nil {
		return fmt.Errorf("swap record is nil")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO swaps (
			id, user_address, token_in, token_out, amount_in, amount_out,
			source_chain, dest_chain, initiated_at, status, bridge_ref, fail_reason
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO NOTHING
	`,
		rec.ID,
		rec.User.Hex(),
		rec.TokenIn.Hex(),
		rec.TokenOut.Hex(),
		rec.AmountIn.String(),
		amountOrZero(rec.AmountOut),
		int64(rec.SourceChain),
		int64(rec.DestChain),
		rec.InitiatedAt,
		rec.Status.String(),
		rec.BridgeRef,
		rec.FailReason,
	)
	return err
}

// UpdateSwap records the current state of an existing swap.
func (s *Store) UpdateSwap(ctx context.Context, rec *model.SwapRecord) error {
	if rec == nil {
		return fmt.Errorf("swap record is nil")
	}
	var completedAt any
	if !rec.CompletedAt.IsZero() {
		completedAt = rec.CompletedAt
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE swaps SET
			amount_out = $2,
			status = $3,
			bridge_ref = $4,
			fail_reason = $5,
			completed_at = $6,
			updated_at = now()
		WHERE id = $1
	`,
		rec.ID,
		amountOrZero(rec.AmountOut),
		rec.Status.String(),
		rec.BridgeRef,
		rec.FailReason,
		completedAt,
	)
	return err
}

// GetSwap loads one swap by id.
func (s *Store) GetSwap(ctx context.Context, id string) (*model.SwapRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_address, token_in, token_out, amount_in::TEXT, amount_out::TEXT,
		       source_chain, dest_chain, initiated_at, completed_at,
		       status, bridge_ref, fail_reason
		FROM swaps WHERE id = $1
	`, id)
	rec, err := scanSwap(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("swap %s: %w", id, model.ErrSwapNotFound)
		}
		return nil, err
	}
	return rec, nil
}

// SwapsByUser loads all swaps for a user address, newest first.
func (s *Store) SwapsByUser(ctx context.Context, user common.Address) ([]*model.SwapRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_address, token_in, token_out, amount_in::TEXT, amount_out::TEXT,
		       source_chain, dest_chain, initiated_at, completed_at,
		       status, bridge_ref, fail_reason
		FROM swaps WHERE user_address = $1
		ORDER BY initiated_at DESC
	`, user.Hex())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.SwapRecord
	for rows.Next() {
		rec, err := scanSwap(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpsertChainStats writes one chain's aggregates.
func (s *Store) UpsertChainStats(ctx context.Context, stats model.ChainStats) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chain_stats (
			chain_id, total_swaps, successful_swaps, failed_swaps,
			recovered_swaps, avg_execution_seconds, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,now())
		ON CONFLICT (chain_id) DO UPDATE SET
			total_swaps = EXCLUDED.total_swaps,
			successful_swaps = EXCLUDED.successful_swaps,
			failed_swaps = EXCLUDED.failed_swaps,
			recovered_swaps = EXCLUDED.recovered_swaps,
			avg_execution_seconds = EXCLUDED.avg_execution_seconds,
			updated_at = now()
	`,
		int64(stats.ChainID),
		int64(stats.TotalSwaps),
		int64(stats.SuccessfulSwaps),
		int64(stats.FailedSwaps),
		int64(stats.RecoveredSwaps),
		stats.AvgExecutionSeconds,
	)
	return err
}

// ChainStats loads all persisted chain aggregates.
func (s *Store) ChainStats(ctx context.Context) ([]model.ChainStats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT chain_id, total_swaps, successful_swaps, failed_swaps,
		       recovered_swaps, avg_execution_seconds
		FROM chain_stats ORDER BY chain_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ChainStats
	for rows.Next() {
		var st model.ChainStats
		var chainID, total, success, failed, recovered int64
		if err := rows.Scan(&chainID, &total, &success, &failed, &recovered, &st.AvgExecutionSeconds); err != nil {
			return nil, err
		}
		st.ChainID = model.ChainID(chainID)
		st.TotalSwaps = uint64(total)
		st.SuccessfulSwaps = uint64(success)
		st.FailedSwaps = uint64(failed)
		st.RecoveredSwaps = uint64(recovered)
		out = append(out, st)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSwap(row rowScanner) (*model.SwapRecord, error) {
	var (
		rec           model.SwapRecord
		userHex       string
		tokenInHex    string
		tokenOutHex   string
		amountInStr   string
		amountOutStr  string
		sourceChain   int64
		destChain     int64
		completedAt   *time.Time
		statusName    string
	)
	if err := row.Scan(
		&rec.ID, &userHex, &tokenInHex, &tokenOutHex, &amountInStr, &amountOutStr,
		&sourceChain, &destChain, &rec.InitiatedAt, &completedAt,
		&statusName, &rec.BridgeRef, &rec.FailReason,
	); err != nil {
		return nil, err
	}

	rec.User = common.HexToAddress(userHex)
	rec.TokenIn = common.HexToAddress(tokenInHex)
	rec.TokenOut = common.HexToAddress(tokenOutHex)
	rec.SourceChain = model.ChainID(sourceChain)
	rec.DestChain = model.ChainID(destChain)
	if completedAt != nil {
		rec.CompletedAt = *completedAt
	}

	var ok bool
	rec.AmountIn, ok = new(big.Int).SetString(amountInStr, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount_in %q for swap %s", amountInStr, rec.ID)
	}
	rec.AmountOut, ok = new(big.Int).SetString(amountOutStr, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount_out %q for swap %s", amountOutStr, rec.ID)
	}

	rec.Status, ok = statusFromName(statusName)
	if !ok {
		return nil, fmt.Errorf("unknown status %q for swap %s", statusName, rec.ID)
	}
	return &rec, nil
}

func statusFromName(name string) (model.SwapStatus, bool) {
	for _, s := range []model.SwapStatus{
		model.StatusInitiated, model.StatusBridging, model.StatusSwapping,
		model.StatusBridgingBack, model.StatusCompleted, model.StatusFailed,
		model.StatusRecovered,
	} {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}

func amountOrZero(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
