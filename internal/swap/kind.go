// Package swap builds the per-pool getter calls of a stableswap pool, decodes
// their raw return data and assembles pool snapshots.
package swap

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// Kind identifies which pool getter a call targets and therefore how its
// return data is decoded.
type Kind uint8

const (
	AmplificationFactor Kind = iota + 1
	SwapStorage
	Paused
)

// Layout is the per-pool call order. Assembled groups follow it exactly.
var Layout = []Kind{AmplificationFactor, SwapStorage, Paused}

// GroupSize is the number of calls issued per pool.
var GroupSize = len(Layout)

var (
	signatures = map[Kind]string{
		AmplificationFactor: "getA()",
		SwapStorage:         "swapStorage()",
		Paused:              "paused()",
	}
	selectors = map[Kind][]byte{}
)

func init() {
	for kind, sig := range signatures {
		selectors[kind] = crypto.Keccak256([]byte(sig))[:4]
	}
}

func (k Kind) String() string {
	switch k {
	case AmplificationFactor:
		return "amplification_factor"
	case SwapStorage:
		return "swap_storage"
	case Paused:
		return "paused"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Signature returns the Solidity signature of the getter.
func (k Kind) Signature() string {
	return signatures[k]
}

// Selector returns a copy of the 4-byte function selector, or nil for an
// unknown kind.
func (k Kind) Selector() []byte {
	sel, ok := selectors[k]
	if !ok {
		return nil
	}
	return append([]byte(nil), sel...)
}
