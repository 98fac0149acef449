package multicall

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultAddress is the Multicall3 deployment shared by most EVM chains.
const DefaultAddress = "0xcA11bde05977b3631167028862bE2a173976CA11"

const contractABIJSON = `[
	{
		"inputs": [
			{
				"components": [
					{"internalType": "address", "name": "target", "type": "address"},
					{"internalType": "bytes", "name": "callData", "type": "bytes"}
				],
				"internalType": "struct Multicall3.Call[]",
				"name": "calls",
				"type": "tuple[]"
			}
		],
		"name": "aggregate",
		"outputs": [
			{"internalType": "uint256", "name": "blockNumber", "type": "uint256"},
			{"internalType": "bytes[]", "name": "returnData", "type": "bytes[]"}
		],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "bool", "name": "requireSuccess", "type": "bool"},
			{
				"components": [
					{"internalType": "address", "name": "target", "type": "address"},
					{"internalType": "bytes", "name": "callData", "type": "bytes"}
				],
				"internalType": "struct Multicall3.Call[]",
				"name": "calls",
				"type": "tuple[]"
			}
		],
		"name": "tryAggregate",
		"outputs": [
			{
				"components": [
					{"internalType": "bool", "name": "success", "type": "bool"},
					{"internalType": "bytes", "name": "returnData", "type": "bytes"}
				],
				"internalType": "struct Multicall3.Result[]",
				"name": "returnData",
				"type": "tuple[]"
			}
		],
		"stateMutability": "payable",
		"type": "function"
	}
]`

var contractABI = mustParseABI(contractABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse multicall abi: %v", err))
	}
	return parsed
}

// ContractABI returns the parsed aggregate/tryAggregate ABI.
func ContractABI() abi.ABI {
	return contractABI
}

// Mode selects the multicall entry point.
type Mode string

const (
	// ModeStrict uses aggregate: any failing sub-call reverts the batch.
	ModeStrict Mode = "strict"
	// ModeTry uses tryAggregate(false, ...): failing sub-calls come back
	// as failed results inside a successful batch.
	ModeTry Mode = "try"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeStrict:
		return ModeStrict, nil
	case ModeTry:
		return ModeTry, nil
	default:
		return "", fmt.Errorf("unknown multicall mode %q (want strict or try)", s)
	}
}

// Caller executes a read-only contract call at a block; nil reads latest.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Contract is an Endpoint backed by an on-chain multicall contract.
type Contract struct {
	caller      Caller
	address     common.Address
	mode        Mode
	blockNumber *big.Int
	gas         uint64
}

type ContractOption func(*Contract)

// WithBlockNumber pins every batch to one block so concurrent batches read
// the same state.
func WithBlockNumber(number uint64) ContractOption {
	return func(c *Contract) {
		if number > 0 {
			c.blockNumber = new(big.Int).SetUint64(number)
		}
	}
}

func WithGas(gas uint64) ContractOption {
	return func(c *Contract) {
		c.gas = gas
	}
}

func NewContract(caller Caller, address common.Address, mode Mode, opts ...ContractOption) *Contract {
	c := &Contract{
		caller:  caller,
		address: address,
		mode:    mode,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type aggregateCall struct {
	Target   common.Address
	CallData []byte
}

type aggregateResult struct {
	BlockNumber *big.Int
	ReturnData  [][]byte
}

type tryResult struct {
	Success    bool
	ReturnData []byte
}

// Aggregate implements Endpoint.
func (c *Contract) Aggregate(ctx context.Context, batch []Call) ([]RawResult, error) {
	calls := make([]aggregateCall, len(batch))
	for i, call := range batch {
		calls[i] = aggregateCall{Target: call.Target, CallData: call.CallData}
	}

	method := "aggregate"
	args := []interface{}{calls}
	if c.mode == ModeTry {
		method = "tryAggregate"
		args = []interface{}{false, calls}
	}

	input, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	to := c.address
	output, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input, Gas: c.gas}, c.blockNumber)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	if c.mode == ModeTry {
		var results []tryResult
		if err := contractABI.UnpackIntoInterface(&results, method, output); err != nil {
			return nil, fmt.Errorf("unpack %s: %w", method, err)
		}
		raws := make([]RawResult, len(results))
		for i, r := range results {
			raws[i] = RawResult{Success: r.Success, ReturnData: r.ReturnData}
		}
		return raws, nil
	}

	var result aggregateResult
	if err := contractABI.UnpackIntoInterface(&result, method, output); err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	raws := make([]RawResult, len(result.ReturnData))
	for i, data := range result.ReturnData {
		raws[i] = RawResult{Success: true, ReturnData: data}
	}
	return raws, nil
}
