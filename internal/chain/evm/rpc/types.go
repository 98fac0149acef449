package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/mobiusAMM/mobius-pool-registry/internal/fault"
)

type Request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("%s (code %d, data %s)", e.Message, e.Code, string(e.Data))
	}
	return e.Message
}

// FaultClass reports node-side failures, reverts included, as transport faults.
func (e *RPCError) FaultClass() fault.Class { return fault.ClassTransport }

// CallArgs is the transaction object of eth_call.
type CallArgs struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
	Gas  string `json:"gas,omitempty"`
	Data string `json:"data"`
}
