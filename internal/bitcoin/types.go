package bitcoin

import (
	"encoding/json"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// NodeClient is the subset of rpcclient.Client the node adapters use.
	NodeClient interface {
		GetBlockCount() (int64, error)
		GetBlockHash(blockHeight int64) (*chainhash.Hash, error)
		RawRequest(method string, params []json.RawMessage) (json.RawMessage, error)
	}

	// RPCMetrics records metrics for RPC calls.
	RPCMetrics interface {
		Observe(operation string, err error, started time.Time)
		ObserveRawBlock(size int)
	}

	// BlockRPC is what RawBlockSource needs from the node.
	BlockRPC interface {
		GetBlockCount() (int64, error)
		GetBlockHash(blockHeight int64) (*chainhash.Hash, error)
		GetRawBlock(blockHash *chainhash.Hash) ([]byte, error)
	}
)
