package decoder

import (
	"context"
	"fmt"

	"github.com/goodnatureofminers/blockinsight7000-decoder/pkg/safe"
	"go.uber.org/zap"
)

const (
	witnessMarker = 0x00
	witnessFlag   = 0x01
)

// Transaction is a decoded transaction. HasWitness selects the input shape:
// every input carries a non-nil Witness iff HasWitness is true.
type Transaction struct {
	Version    uint32   `json:"version"`
	HasWitness bool     `json:"hasWitness"`
	Inputs     []Input  `json:"inputs"`
	Outputs    []Output `json:"outputs"`
	LockTime   string   `json:"lockTime"`
	// Hash is the txid, computed over the serialization without witness data.
	Hash string `json:"hash"`
	// Size counts every byte consumed, marker, flag and witnesses included.
	Size   int `json:"size"`
	Weight int `json:"weight"`
}

// Type implements Record.
func (*Transaction) Type() RecordType {
	return RecordTransaction
}

// VSize is the virtual size, weight divided by four rounded up.
func (tx *Transaction) VSize() int {
	return (tx.Weight + 3) / 4
}

// LockTimeValue parses LockTime as the little-endian uint32 it encodes.
func (tx *Transaction) LockTimeValue() (uint32, error) {
	return parseWireUint32(tx.LockTime)
}

// MarshalJSON renders the record with its type tag; inputs carry a witness
// key only in witness transactions.
func (tx *Transaction) MarshalJSON() ([]byte, error) {
	type witnessInput struct {
		Input
		Witness []string `json:"witness"`
	}
	type transaction Transaction

	var inputs any = tx.Inputs
	if tx.HasWitness {
		shaped := make([]witnessInput, len(tx.Inputs))
		for i, in := range tx.Inputs {
			shaped[i] = witnessInput{Input: in, Witness: in.Witness}
			if shaped[i].Witness == nil {
				shaped[i].Witness = []string{}
			}
		}
		inputs = shaped
	}

	return jsonAPI.Marshal(struct {
		Type RecordType `json:"type"`
		*transaction
		Inputs any `json:"inputs"`
	}{
		Type:        RecordTransaction,
		transaction: (*transaction)(tx),
		Inputs:      inputs,
	})
}

// TransactionDecoder decodes consecutive transactions from one source,
// reusing a single Accumulator.
type TransactionDecoder struct {
	acc  *Accumulator
	opts options
}

// NewTransactionDecoder returns a decoder reading from src.
func NewTransactionDecoder(src Source, opts ...Option) *TransactionDecoder {
	return newTransactionDecoder(NewAccumulator(src), newOptions(opts))
}

func newTransactionDecoder(acc *Accumulator, opts options) *TransactionDecoder {
	return &TransactionDecoder{acc: acc, opts: opts}
}

// Decode reads the next transaction. No partial transaction is returned on
// error; the accumulator is reset either way.
func (d *TransactionDecoder) Decode(ctx context.Context) (*Transaction, error) {
	tx, err := d.decode(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return tx, nil
}

func (d *TransactionDecoder) decode(ctx context.Context) (*Transaction, error) {
	defer d.acc.Reset()

	version, err := d.acc.Read(ctx, 4)
	if err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}

	hasWitness, inputCount, err := d.readInputCount(ctx)
	if err != nil {
		return nil, err
	}

	inputs, err := readList(ctx, d.acc, inputCount, "input", ReadInput)
	if err != nil {
		return nil, err
	}

	outputCount, err := ReadCompactSize(ctx, d.acc)
	if err != nil {
		return nil, fmt.Errorf("read output count: %w", err)
	}
	outputs, err := readList(ctx, d.acc, outputCount, "output", ReadOutput)
	if err != nil {
		return nil, err
	}

	if hasWitness {
		d.acc.SetAutoExclude(true)
		for i := range inputs {
			inputs[i].Witness, err = ReadWitness(ctx, d.acc)
			if err != nil {
				return nil, fmt.Errorf("read witness %d: %w", i, err)
			}
		}
		d.acc.SetAutoExclude(false)
	}

	lockTime, err := d.acc.Read(ctx, 4)
	if err != nil {
		return nil, fmt.Errorf("read lock time: %w", err)
	}

	fp := d.acc.Snapshot()

	return &Transaction{
		Version:    leUint32(version),
		HasWitness: hasWitness,
		Inputs:     inputs,
		Outputs:    outputs,
		LockTime:   wireHex(lockTime),
		Hash:       fp.Hash,
		Size:       fp.Size,
		Weight:     fp.Weight,
	}, nil
}

// readInputCount resolves the count-or-marker ambiguity after the version.
// A count that decodes to zero, however it is encoded, is the segwit marker
// when the next byte is the 0x01 flag.
func (d *TransactionDecoder) readInputCount(ctx context.Context) (bool, uint64, error) {
	before := len(d.acc.chunks)
	count, err := ReadCompactSize(ctx, d.acc)
	if err != nil {
		return false, 0, fmt.Errorf("read input count: %w", err)
	}
	if count != 0 {
		return false, count, nil
	}

	flag, err := d.acc.Read(ctx, 1)
	if err != nil {
		return false, 0, fmt.Errorf("read witness flag: %w", err)
	}

	switch {
	case flag[0] == witnessFlag:
		d.acc.MarkRecent(len(d.acc.chunks) - before)
		count, err := ReadCompactSize(ctx, d.acc)
		if err != nil {
			return false, 0, fmt.Errorf("read input count: %w", err)
		}
		return true, count, nil
	case d.opts.legacyFlagFallback:
		d.opts.logger.Debug("witness marker with unexpected flag kept as framing",
			zap.Uint8("flag", flag[0]))
		return false, 0, nil
	default:
		return false, 0, fmt.Errorf("flag byte 0x%02x after witness marker: %w", flag[0], ErrAmbiguousWitnessFlag)
	}
}

func readList[T any](
	ctx context.Context,
	src Source,
	n uint64,
	what string,
	read func(context.Context, Source) (T, error),
) ([]T, error) {
	count, err := safe.Int(n)
	if err != nil {
		return nil, fmt.Errorf("%s count: %w", what, err)
	}

	items := make([]T, 0, min(count, maxPrealloc))
	for i := 0; i < count; i++ {
		item, err := read(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("read %s %d: %w", what, i, err)
		}
		items = append(items, item)
	}
	return items, nil
}
