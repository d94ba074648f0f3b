// Package ingest turns decoded blocks into storage rows.
package ingest

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/decoder"
	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/model"
	"github.com/goodnatureofminers/blockinsight7000-decoder/pkg/safe"
)

// difficultyOneBits is the compact target difficulty is measured against on
// every network.
const difficultyOneBits = 0x1d00ffff

var difficultyOneTarget = new(big.Float).SetInt(blockchain.CompactToBig(difficultyOneBits))

var (
	// ErrNoCoinbase reports a block whose height cannot be derived because
	// its first transaction is not a coinbase.
	ErrNoCoinbase = errors.New("block has no coinbase")
	// ErrNoHeightCommitment reports a block whose coinbase is not bound to
	// commit to the block height.
	ErrNoHeightCommitment = errors.New("block does not commit to its height")
)

// heightCommitmentVersion is the first block version that commits to its
// height in the coinbase.
const heightCommitmentVersion = 2

// Converter builds storage rows for decoded blocks of one network.
type Converter struct {
	coin    model.Coin
	network model.Network
	params  *chaincfg.Params
	scripts *scriptDecoder
}

// NewConverter initializes a converter using the params of network.
func NewConverter(network model.Network) (*Converter, error) {
	params, err := network.Params()
	if err != nil {
		return nil, err
	}
	return &Converter{
		coin:    model.BTC,
		network: network,
		params:  params,
		scripts: &scriptDecoder{params: params},
	}, nil
}

// Height returns the height of block when the block itself proves it: the
// genesis block, or a block of version 2 or later whose coinbase commits to a
// height at or above the network's commitment activation. Older coinbases
// carry arbitrary bytes where the height would be.
func (c *Converter) Height(block *decoder.Block) (uint64, error) {
	if block == nil || block.Header == nil {
		return 0, errors.New("block without header")
	}
	if block.Header.Hash == c.params.GenesisHash.String() {
		return 0, nil
	}
	if block.Coinbase == nil {
		return 0, ErrNoCoinbase
	}

	activation, err := safe.Uint64(c.params.BIP0034Height)
	if err != nil {
		return 0, fmt.Errorf("height commitment activation: %w", err)
	}
	if block.Header.Version < heightCommitmentVersion || block.Coinbase.Height < activation {
		return 0, fmt.Errorf("block %s: %w", block.Header.Hash, ErrNoHeightCommitment)
	}
	return block.Coinbase.Height, nil
}

// Convert maps block, stored at height, to rows.
func (c *Converter) Convert(block *decoder.Block, height uint64) (model.InsertBlock, error) {
	if block == nil || block.Header == nil {
		return model.InsertBlock{}, errors.New("block without header")
	}
	h := block.Header

	txCount, err := safe.Uint32(len(block.Transactions))
	if err != nil {
		return model.InsertBlock{}, fmt.Errorf("block %s tx count: %w", h.Hash, err)
	}

	frame := decoder.HeaderSize + wire.VarIntSerializeSize(h.TxCount)
	size, weight := frame, 4*frame

	out := model.InsertBlock{
		Txs: make([]model.Transaction, 0, len(block.Transactions)),
	}
	for i, tx := range block.Transactions {
		size += tx.Size
		weight += tx.Weight

		row, inputs, outputs, err := c.convertTx(tx, i, h, height)
		if err != nil {
			return model.InsertBlock{}, fmt.Errorf("block %s tx %d: %w", h.Hash, i, err)
		}
		out.Txs = append(out.Txs, row)
		out.Inputs = append(out.Inputs, inputs...)
		out.Outputs = append(out.Outputs, outputs...)
	}

	blockSize, err := safe.Uint32(size)
	if err != nil {
		return model.InsertBlock{}, fmt.Errorf("block %s size: %w", h.Hash, err)
	}
	blockWeight, err := safe.Uint32(weight)
	if err != nil {
		return model.InsertBlock{}, fmt.Errorf("block %s weight: %w", h.Hash, err)
	}

	var coinbaseValue uint64
	if block.Coinbase != nil {
		if !block.Coinbase.Value.IsUint64() {
			return model.InsertBlock{}, fmt.Errorf("block %s coinbase value %s overflows uint64", h.Hash, block.Coinbase.Value)
		}
		coinbaseValue = block.Coinbase.Value.Uint64()
	}

	out.Block = model.Block{
		Coin:          c.coin,
		Network:       c.network,
		Height:        height,
		Hash:          h.Hash,
		PrevBlockHash: h.PrevBlockHash,
		Timestamp:     h.Timestamp(),
		Version:       h.Version,
		MerkleRoot:    h.MerkleRoot,
		Bits:          h.Bits,
		Nonce:         h.Nonce,
		Difficulty:    difficulty(h.Bits),
		Size:          blockSize,
		Weight:        blockWeight,
		TXCount:       txCount,
		CoinbaseValue: coinbaseValue,
	}
	return out, nil
}

func (c *Converter) convertTx(
	tx *decoder.Transaction,
	position int,
	h *decoder.Header,
	height uint64,
) (model.Transaction, []model.TransactionInput, []model.TransactionOutput, error) {
	pos, err := safe.Uint32(position)
	if err != nil {
		return model.Transaction{}, nil, nil, fmt.Errorf("position: %w", err)
	}
	inputCount, err := safe.Uint32(len(tx.Inputs))
	if err != nil {
		return model.Transaction{}, nil, nil, fmt.Errorf("input count: %w", err)
	}
	outputCount, err := safe.Uint32(len(tx.Outputs))
	if err != nil {
		return model.Transaction{}, nil, nil, fmt.Errorf("output count: %w", err)
	}
	size, err := safe.Uint32(tx.Size)
	if err != nil {
		return model.Transaction{}, nil, nil, fmt.Errorf("size: %w", err)
	}
	weight, err := safe.Uint32(tx.Weight)
	if err != nil {
		return model.Transaction{}, nil, nil, fmt.Errorf("weight: %w", err)
	}
	lockTime, err := tx.LockTimeValue()
	if err != nil {
		return model.Transaction{}, nil, nil, fmt.Errorf("lock time: %w", err)
	}

	isCoinbase := position == 0 && len(tx.Inputs) > 0 && tx.Inputs[0].IsCoinbase()

	inputs := make([]model.TransactionInput, 0, len(tx.Inputs))
	for idx, in := range tx.Inputs {
		sequence, err := in.SequenceValue()
		if err != nil {
			return model.Transaction{}, nil, nil, fmt.Errorf("input %d sequence: %w", idx, err)
		}
		scriptSig, err := hex.DecodeString(in.ScriptSig)
		if err != nil {
			return model.Transaction{}, nil, nil, fmt.Errorf("input %d script sig: %w", idx, err)
		}
		inputs = append(inputs, model.TransactionInput{
			Coin:         c.coin,
			Network:      c.network,
			BlockHeight:  height,
			TxID:         tx.Hash,
			Index:        uint32(idx),
			PrevTxID:     in.PrevTxID,
			PrevVout:     uint32(in.PrevVOut),
			Sequence:     sequence,
			IsCoinbase:   isCoinbase && idx == 0,
			ScriptSigHex: in.ScriptSig,
			ScriptSigAsm: disasm(scriptSig),
			Witness:      in.Witness,
		})
	}

	outputs := make([]model.TransactionOutput, 0, len(tx.Outputs))
	for idx, o := range tx.Outputs {
		script, err := c.scripts.decodePkScript(o.ScriptPubKey)
		if err != nil {
			return model.Transaction{}, nil, nil, fmt.Errorf("output %d script: %w", idx, err)
		}
		outputs = append(outputs, model.TransactionOutput{
			Coin:        c.coin,
			Network:     c.network,
			BlockHeight: height,
			TxID:        tx.Hash,
			Index:       uint32(idx),
			Value:       uint64(o.Value),
			ScriptType:  script.Type,
			ScriptHex:   o.ScriptPubKey,
			ScriptAsm:   script.Asm,
			Addresses:   script.Addresses,
		})
	}

	return model.Transaction{
		Coin:        c.coin,
		Network:     c.network,
		TxID:        tx.Hash,
		BlockHeight: height,
		BlockHash:   h.Hash,
		Position:    pos,
		Timestamp:   h.Timestamp(),
		Size:        size,
		VSize:       uint32(tx.VSize()),
		Weight:      weight,
		Version:     tx.Version,
		LockTime:    lockTime,
		InputCount:  inputCount,
		OutputCount: outputCount,
		HasWitness:  tx.HasWitness,
		IsCoinbase:  isCoinbase,
	}, inputs, outputs, nil
}

// difficulty is the ratio of the difficulty-one target to the target bits
// encodes.
func difficulty(bits uint32) float64 {
	target := blockchain.CompactToBig(bits)
	if target.Sign() <= 0 {
		return 0
	}
	d, _ := new(big.Float).Quo(difficultyOneTarget, new(big.Float).SetInt(target)).Float64()
	return d
}
