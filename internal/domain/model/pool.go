package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Pool is a stableswap pool tracked by the registry.
type Pool struct {
	Name    string
	Address common.Address
}

type Fees struct {
	Trade    string `json:"trade"`
	Admin    string `json:"admin"`
	Deposit  string `json:"deposit"`
	Withdraw string `json:"withdraw"`
}

// PoolSnapshot is the on-chain state of one pool at the snapshot block.
// Numeric fields are base-10 integers kept as strings; they may exceed 64 bits.
type PoolSnapshot struct {
	Pool      Pool   `json:"-"`
	AmpFactor string `json:"ampFactor"`
	Paused    bool   `json:"paused"`
	Fees      Fees   `json:"fees"`
}

// Snapshot is the output of one run.
type Snapshot struct {
	RunID       uuid.UUID
	Chain       Chain
	Network     Network
	BlockNumber uint64
	TakenAt     time.Time
	Pools       []PoolSnapshot
}
