package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/mobiusAMM/mobius-pool-registry/internal/domain/model"
)

var poolSnapshotColumns = []string{
	"run_id", "position", "pool_name", "pool_address",
	"amp_factor", "paused", "trade_fee", "admin_fee", "deposit_fee", "withdraw_fee",
}

// SnapshotRepo stores each run and its pools in one transaction.
type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

func (r *SnapshotRepo) Name() string {
	return "postgres"
}

// Write inserts the run header and bulk-copies its pools.
func (r *SnapshotRepo) Write(ctx context.Context, s model.Snapshot) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pool_snapshot_runs (run_id, chain, network, block_number, pool_count, taken_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.RunID.String(), string(s.Chain), string(s.Network), int64(s.BlockNumber), len(s.Pools), s.TakenAt,
	); err != nil {
		return fmt.Errorf("insert snapshot run: %w", err)
	}

	if len(s.Pools) > 0 {
		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("pool_snapshots", poolSnapshotColumns...))
		if err != nil {
			return fmt.Errorf("prepare pool copy: %w", err)
		}
		for i, p := range s.Pools {
			if _, err := stmt.ExecContext(ctx,
				s.RunID.String(), i, p.Pool.Name, p.Pool.Address.Hex(),
				p.AmpFactor, p.Paused, p.Fees.Trade, p.Fees.Admin, p.Fees.Deposit, p.Fees.Withdraw,
			); err != nil {
				stmt.Close()
				return fmt.Errorf("copy pool %d: %w", i, err)
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			stmt.Close()
			return fmt.Errorf("flush pool copy: %w", err)
		}
		if err := stmt.Close(); err != nil {
			return fmt.Errorf("close pool copy: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot tx: %w", err)
	}
	return nil
}
