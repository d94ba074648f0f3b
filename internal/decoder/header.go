package decoder

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// HeaderSize is the serialized size of a block header.
const HeaderSize = 80

// Header is a decoded block header. Hashes are in display (byte-reversed)
// order.
type Header struct {
	Version       uint32 `json:"version"`
	PrevBlockHash string `json:"prevBlockHash"`
	MerkleRoot    string `json:"merkleRoot"`
	Time          uint32 `json:"time"`
	Bits          uint32 `json:"bits"`
	Nonce         uint32 `json:"nonce"`
	Hash          string `json:"hash"`
	// TxCount is zero when the header was decoded without block context.
	TxCount uint64 `json:"txCount"`
}

// Type implements Record.
func (*Header) Type() RecordType {
	return RecordHeader
}

// Timestamp returns the header time in UTC.
func (h *Header) Timestamp() time.Time {
	return time.Unix(int64(h.Time), 0).UTC()
}

// ReadHeader decodes an 80-byte block header. When withTxCount is set the
// compact size transaction count that follows a header inside a block is read
// as well.
func ReadHeader(ctx context.Context, src Source, withTxCount bool) (*Header, error) {
	raw, err := readExact(ctx, src, HeaderSize)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	h := &Header{
		Version:       binary.LittleEndian.Uint32(raw[0:4]),
		PrevBlockHash: displayHash(raw[4:36]),
		MerkleRoot:    displayHash(raw[36:68]),
		Time:          binary.LittleEndian.Uint32(raw[68:72]),
		Bits:          binary.LittleEndian.Uint32(raw[72:76]),
		Nonce:         binary.LittleEndian.Uint32(raw[76:80]),
		Hash:          chainhash.DoubleHashH(raw).String(),
	}

	if withTxCount {
		h.TxCount, err = ReadCompactSize(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("read transaction count: %w", err)
		}
	}
	return h, nil
}

func displayHash(b []byte) string {
	var h chainhash.Hash
	copy(h[:], b)
	return h.String()
}

// MarshalJSON renders the header with its record type tag.
func (h *Header) MarshalJSON() ([]byte, error) {
	type header Header
	return jsonAPI.Marshal(struct {
		Type RecordType `json:"type"`
		*header
	}{
		Type:   RecordHeader,
		header: (*header)(h),
	})
}
