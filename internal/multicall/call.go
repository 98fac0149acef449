// Package multicall splits call lists into bounded batches, dispatches them
// concurrently to a batch-call endpoint and reassembles the results in
// submission order.
package multicall

import (
	"github.com/ethereum/go-ethereum/common"
)

// Call is one read-only contract call.
type Call struct {
	Target   common.Address
	CallData []byte
}

// RawResult is the undecoded response to one Call. Success is false when the
// endpoint reported the call as failed; ReturnData is then meaningless.
type RawResult struct {
	Success    bool
	ReturnData []byte
}

// Failed is the missing/failed marker.
func Failed() RawResult {
	return RawResult{}
}
