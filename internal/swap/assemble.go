package swap

import (
	"fmt"

	"github.com/mobiusAMM/mobius-pool-registry/internal/domain/model"
	"github.com/mobiusAMM/mobius-pool-registry/internal/fault"
)

// Assemble groups values into one snapshot per pool. Each group of
// groupSize values must follow Layout and target a single pool.
func Assemble(values []Value, groupSize int) ([]model.PoolSnapshot, error) {
	if groupSize != GroupSize {
		return nil, fault.Configuration(fmt.Errorf("assemble: group size %d, pools are read with %d calls", groupSize, GroupSize))
	}
	if len(values)%groupSize != 0 {
		return nil, fault.Integrity(fmt.Errorf("assemble: %d values is not a multiple of group size %d", len(values), groupSize))
	}

	snapshots := make([]model.PoolSnapshot, 0, len(values)/groupSize)
	for start := 0; start < len(values); start += groupSize {
		group := values[start : start+groupSize]
		for i, kind := range Layout {
			if group[i].Kind != kind {
				return nil, fault.Integrity(fmt.Errorf("assemble: position %d is %s, want %s", start+i, group[i].Kind, kind))
			}
			if group[i].Pool.Address != group[0].Pool.Address {
				return nil, fault.Integrity(fmt.Errorf("assemble: position %d belongs to pool %s, group started with %s",
					start+i, group[i].Pool.Address.Hex(), group[0].Pool.Address.Hex()))
			}
		}

		amp, storage, paused := group[0], group[1].Storage, group[2]
		snapshots = append(snapshots, model.PoolSnapshot{
			Pool:      amp.Pool,
			AmpFactor: amp.Int.String(),
			Paused:    paused.Bool,
			Fees: model.Fees{
				Trade:    storage.SwapFee.String(),
				Admin:    storage.AdminFee.String(),
				Deposit:  storage.DefaultDepositFee.String(),
				Withdraw: storage.DefaultWithdrawFee.String(),
			},
		})
	}
	return snapshots, nil
}
