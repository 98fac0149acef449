package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Head is the chain id and latest block number, fetched in one round trip.
type Head struct {
	ChainID     uint64
	BlockNumber uint64
}

// CallContract executes a read-only eth_call. A nil blockNumber reads the
// latest state.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if msg.To == nil {
		return nil, fmt.Errorf("eth_call: missing target address")
	}

	args := CallArgs{
		To:   msg.To.Hex(),
		Data: hexutil.Encode(msg.Data),
	}
	if msg.From != (common.Address{}) {
		args.From = msg.From.Hex()
	}
	if msg.Gas > 0 {
		args.Gas = hexutil.EncodeUint64(msg.Gas)
	}

	result, err := c.call(ctx, "eth_call", []interface{}{args, blockTag(blockNumber)})
	if err != nil {
		return nil, fmt.Errorf("eth_call(%s): %w", args.To, err)
	}

	var hexData string
	if err := json.Unmarshal(result, &hexData); err != nil {
		return nil, fmt.Errorf("unmarshal eth_call result: %w", err)
	}
	data, err := hexutil.Decode(hexData)
	if err != nil {
		return nil, fmt.Errorf("decode eth_call result: %w", err)
	}
	return data, nil
}

func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	result, err := c.call(ctx, "eth_chainId", []interface{}{})
	if err != nil {
		return 0, fmt.Errorf("eth_chainId: %w", err)
	}
	id, err := parseHexQuantity(result)
	if err != nil {
		return 0, fmt.Errorf("parse chain id: %w", err)
	}
	return id, nil
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	result, err := c.call(ctx, "eth_blockNumber", []interface{}{})
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}
	number, err := parseHexQuantity(result)
	if err != nil {
		return 0, fmt.Errorf("parse block number: %w", err)
	}
	return number, nil
}

// Head fetches eth_chainId and eth_blockNumber in a single JSON-RPC batch.
func (c *Client) Head(ctx context.Context) (Head, error) {
	requests := []Request{
		c.newRequest("eth_chainId", []interface{}{}),
		c.newRequest("eth_blockNumber", []interface{}{}),
	}

	responses, err := c.callBatch(ctx, requests)
	if err != nil {
		return Head{}, fmt.Errorf("head batch: %w", err)
	}

	values := make([]uint64, len(responses))
	for i, resp := range responses {
		if resp.Error != nil {
			return Head{}, fmt.Errorf("%s: %w", requests[i].Method, resp.Error)
		}
		value, err := parseHexQuantity(resp.Result)
		if err != nil {
			return Head{}, fmt.Errorf("parse %s: %w", requests[i].Method, err)
		}
		values[i] = value
	}

	return Head{ChainID: values[0], BlockNumber: values[1]}, nil
}

func parseHexQuantity(raw json.RawMessage) (uint64, error) {
	var hexNum string
	if err := json.Unmarshal(raw, &hexNum); err != nil {
		return 0, fmt.Errorf("unmarshal quantity: %w", err)
	}
	value, err := hexutil.DecodeUint64(hexNum)
	if err != nil {
		return 0, fmt.Errorf("parse hex %q: %w", hexNum, err)
	}
	return value, nil
}

func blockTag(number *big.Int) string {
	if number == nil {
		return "latest"
	}
	return hexutil.EncodeBig(number)
}
