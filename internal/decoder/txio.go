package decoder

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/goodnatureofminers/blockinsight7000-decoder/pkg/safe"
)

// nullTxID is the previous transaction id of an input that spends nothing.
const nullTxID = "0000000000000000000000000000000000000000000000000000000000000000"

// maxPrealloc caps slice capacity derived from untrusted counts.
const maxPrealloc = 1024

// Input is one transaction input. Witness is non-nil exactly when the owning
// transaction has witness data.
type Input struct {
	PrevTxID  string   `json:"prevTxId"`
	PrevVOut  int32    `json:"prevVOut"`
	ScriptSig string   `json:"scriptSig"`
	Sequence  string   `json:"sequence"`
	Witness   []string `json:"-"`
}

// IsCoinbase reports whether the input references no previous output.
func (in Input) IsCoinbase() bool {
	return in.PrevVOut == -1 && in.PrevTxID == nullTxID
}

// SequenceValue parses Sequence as the little-endian uint32 it encodes.
func (in Input) SequenceValue() (uint32, error) {
	return parseWireUint32(in.Sequence)
}

// Amount is an output value in satoshis. Its text form is 0x-prefixed
// lowercase hex without padding.
type Amount uint64

func (a Amount) String() string {
	return "0x" + strconv.FormatUint(uint64(a), 16)
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(text []byte) error {
	s := string(text)
	if !strings.HasPrefix(s, "0x") {
		return fmt.Errorf("amount %q: missing 0x prefix", s)
	}
	v, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return fmt.Errorf("amount %q: %w", s, err)
	}
	*a = Amount(v)
	return nil
}

// Output is one transaction output.
type Output struct {
	Value        Amount `json:"value"`
	ScriptPubKey string `json:"scriptPubKey"`
}

// ReadInput decodes one input without its witness.
func ReadInput(ctx context.Context, src Source) (Input, error) {
	head, err := readExact(ctx, src, 36)
	if err != nil {
		return Input{}, fmt.Errorf("read outpoint: %w", err)
	}

	script, err := ReadPrefixedHex(ctx, src)
	if err != nil {
		return Input{}, fmt.Errorf("read script sig: %w", err)
	}

	sequence, err := readExact(ctx, src, 4)
	if err != nil {
		return Input{}, fmt.Errorf("read sequence: %w", err)
	}

	return Input{
		PrevTxID:  displayHash(head[:32]),
		PrevVOut:  int32(binary.LittleEndian.Uint32(head[32:36])),
		ScriptSig: script,
		Sequence:  wireHex(sequence),
	}, nil
}

// ReadOutput decodes one output.
func ReadOutput(ctx context.Context, src Source) (Output, error) {
	value, err := readExact(ctx, src, 8)
	if err != nil {
		return Output{}, fmt.Errorf("read value: %w", err)
	}

	script, err := ReadPrefixedHex(ctx, src)
	if err != nil {
		return Output{}, fmt.Errorf("read script pub key: %w", err)
	}

	return Output{
		Value:        Amount(binary.LittleEndian.Uint64(value)),
		ScriptPubKey: script,
	}, nil
}

// ReadWitness decodes one witness stack. The result is never nil.
func ReadWitness(ctx context.Context, src Source) ([]string, error) {
	n, err := ReadCompactSize(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("read witness item count: %w", err)
	}
	count, err := safe.Int(n)
	if err != nil {
		return nil, fmt.Errorf("witness item count: %w", err)
	}

	items := make([]string, 0, min(count, maxPrealloc))
	for i := 0; i < count; i++ {
		item, err := ReadPrefixedHex(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("read witness item %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func wireHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

func parseWireUint32(s string) (uint32, error) {
	if !strings.HasPrefix(s, "0x") {
		return 0, fmt.Errorf("field %q: missing 0x prefix", s)
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", s, err)
	}
	if len(b) != 4 {
		return 0, fmt.Errorf("field %q: want 4 bytes, got %d", s, len(b))
	}
	return binary.LittleEndian.Uint32(b), nil
}

func leUint32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}
