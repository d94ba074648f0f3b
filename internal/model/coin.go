package model

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
)

type Coin string
type Network string

var (
	BTC Coin = "BTC"
)

var (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
	Regtest Network = "regtest"
	Signet  Network = "signet"
)

// Params returns the chain parameters of the network. Common aliases such as
// "main" or "testnet3" are accepted.
func (n Network) Params() (*chaincfg.Params, error) {
	switch strings.ToLower(string(n)) {
	case "main", "mainnet", "bitcoin":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unsupported network %q", n)
	}
}
