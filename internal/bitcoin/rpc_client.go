// Package bitcoin adapts a Bitcoin node's JSON-RPC interface into raw block
// bytes for the decoder.
package bitcoin

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// rawBlockVerbosity asks getblock for the serialized block as hex.
const rawBlockVerbosity = 0

// RPCClient wraps a node client with metrics instrumentation.
type RPCClient struct {
	client     NodeClient
	rpcMetrics RPCMetrics
}

// NewRPCClient constructs an instrumented RPC client.
func NewRPCClient(client NodeClient, rpcMetrics RPCMetrics) *RPCClient {
	return &RPCClient{
		client:     client,
		rpcMetrics: rpcMetrics,
	}
}

// GetBlockCount returns the latest block count.
func (r *RPCClient) GetBlockCount() (count int64, err error) {
	started := time.Now()
	defer func() {
		r.rpcMetrics.Observe("get_block_count", err, started)
	}()
	return r.client.GetBlockCount()
}

// GetBlockHash returns the block hash for a height.
func (r *RPCClient) GetBlockHash(blockHeight int64) (hash *chainhash.Hash, err error) {
	started := time.Now()
	defer func() {
		r.rpcMetrics.Observe("get_block_hash", err, started)
	}()
	return r.client.GetBlockHash(blockHeight)
}

// GetRawBlock returns the serialized block, witness data included.
func (r *RPCClient) GetRawBlock(blockHash *chainhash.Hash) (block []byte, err error) {
	started := time.Now()
	defer func() {
		r.rpcMetrics.Observe("get_raw_block", err, started)
	}()

	hashParam, err := jsonAPI.Marshal(blockHash.String())
	if err != nil {
		return nil, fmt.Errorf("marshal block hash: %w", err)
	}
	verbosityParam, err := jsonAPI.Marshal(rawBlockVerbosity)
	if err != nil {
		return nil, fmt.Errorf("marshal verbosity: %w", err)
	}

	res, err := r.client.RawRequest("getblock", []json.RawMessage{hashParam, verbosityParam})
	if err != nil {
		return nil, fmt.Errorf("getblock %s: %w", blockHash, err)
	}

	var blockHex string
	if err = jsonAPI.Unmarshal(res, &blockHex); err != nil {
		return nil, fmt.Errorf("unmarshal getblock %s result: %w", blockHash, err)
	}
	block, err = hex.DecodeString(blockHex)
	if err != nil {
		return nil, fmt.Errorf("decode getblock %s hex: %w", blockHash, err)
	}

	r.rpcMetrics.ObserveRawBlock(len(block))
	return block, nil
}
