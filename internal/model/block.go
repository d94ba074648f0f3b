// Package model defines the rows decoded blocks are stored as.
package model

import "time"

// Block is one decoded block header with block-level aggregates.
type Block struct {
	Coin          Coin
	Network       Network
	Height        uint64
	Hash          string
	PrevBlockHash string
	Timestamp     time.Time
	Version       uint32
	MerkleRoot    string
	Bits          uint32
	Nonce         uint32
	Difficulty    float64
	Size          uint32
	Weight        uint32
	TXCount       uint32
	// CoinbaseValue is the sum of the coinbase outputs in satoshis: subsidy
	// plus fees.
	CoinbaseValue uint64
}
