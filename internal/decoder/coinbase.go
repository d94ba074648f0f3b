package decoder

import (
	"encoding/hex"
	"math/big"

	"github.com/shopspring/decimal"
)

const satoshiExp = -8

// Coinbase is derived from the first transaction of a block when that
// transaction spends no previous output.
type Coinbase struct {
	// Height is the BIP34 height pushed at the start of the script sig.
	Height uint64
	// Value is the exact sum of all output values in satoshis.
	Value  *big.Int
	Hash   string
	Script string
}

// Type implements Record.
func (*Coinbase) Type() RecordType {
	return RecordCoinbase
}

// ValueBTC renders Value in whole coins.
func (c *Coinbase) ValueBTC() decimal.Decimal {
	return decimal.NewFromBigInt(c.Value, satoshiExp)
}

// MarshalJSON renders the record with its type tag and Value as 0x hex.
func (c *Coinbase) MarshalJSON() ([]byte, error) {
	value := "0x0"
	if c.Value != nil {
		value = "0x" + c.Value.Text(16)
	}
	return jsonAPI.Marshal(struct {
		Type   RecordType `json:"type"`
		Height uint64     `json:"height"`
		Value  string     `json:"value"`
		Hash   string     `json:"hash"`
		Script string     `json:"script"`
	}{
		Type:   RecordCoinbase,
		Height: c.Height,
		Value:  value,
		Hash:   c.Hash,
		Script: c.Script,
	})
}

// ExtractCoinbase projects tx onto a Coinbase. It reports false when the
// first input references a previous output.
func ExtractCoinbase(tx *Transaction) (*Coinbase, bool) {
	if tx == nil || len(tx.Inputs) == 0 || !tx.Inputs[0].IsCoinbase() {
		return nil, false
	}
	in := tx.Inputs[0]

	script, err := hex.DecodeString(in.ScriptSig)
	if err != nil {
		script = nil
	}

	value := new(big.Int)
	for _, out := range tx.Outputs {
		value.Add(value, new(big.Int).SetUint64(uint64(out.Value)))
	}

	return &Coinbase{
		Height: coinbaseHeight(script),
		Value:  value,
		Hash:   tx.Hash,
		Script: in.ScriptSig,
	}, true
}

// coinbaseHeight reads the first push of a BIP34 script sig as a
// little-endian integer: a length byte b followed by b bytes. A zero length
// or empty script yields 0. Only the bytes present are read, at most eight.
func coinbaseHeight(script []byte) uint64 {
	if len(script) == 0 || script[0] < 1 {
		return 0
	}
	n := min(int(script[0]), len(script)-1, 8)

	var height uint64
	for i := n; i >= 1; i-- {
		height = height<<8 | uint64(script[i])
	}
	return height
}
