package decoder

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// RecordType tags the records of a decoded sequence.
type RecordType string

const (
	RecordHeader      RecordType = "HEADER"
	RecordCoinbase    RecordType = "COINBASE"
	RecordTransaction RecordType = "TX"
)

// Record is one element of a decoded sequence: *Header, *Coinbase or
// *Transaction.
type Record interface {
	Type() RecordType
}

// Block gathers a whole decoded sequence.
type Block struct {
	Header       *Header
	Coinbase     *Coinbase
	Transactions []*Transaction
}

// DecodeBlock drains a Parser over src into a Block.
func DecodeBlock(ctx context.Context, src Source, opts ...Option) (*Block, error) {
	block := &Block{}
	for rec, err := range NewParser(src, opts...).Records(ctx) {
		if err != nil {
			return nil, err
		}
		switch r := rec.(type) {
		case *Header:
			block.Header = r
			block.Transactions = make([]*Transaction, 0, min(r.TxCount, maxPrealloc))
		case *Coinbase:
			block.Coinbase = r
		case *Transaction:
			block.Transactions = append(block.Transactions, r)
		}
	}
	return block, nil
}

// DecodeHeader decodes a serialized header. Eighty bytes decode as a bare
// header; anything longer must carry exactly a trailing transaction count.
func DecodeHeader(ctx context.Context, data []byte) (*Header, error) {
	src := &bytesSource{data: data}

	h, err := ReadHeader(ctx, src, len(data) > HeaderSize)
	if err != nil {
		return nil, classify(err)
	}
	if err := src.expectDrained(); err != nil {
		return nil, classify(err)
	}
	return h, nil
}

// DecodeHeaderHex is DecodeHeader for hex input.
func DecodeHeaderHex(ctx context.Context, s string) (*Header, error) {
	data, err := decodeHex(s)
	if err != nil {
		return nil, classify(err)
	}
	return DecodeHeader(ctx, data)
}

// DecodeTransaction decodes exactly one serialized transaction.
func DecodeTransaction(ctx context.Context, data []byte, opts ...Option) (*Transaction, error) {
	src := &bytesSource{data: data}

	tx, err := NewTransactionDecoder(src, opts...).Decode(ctx)
	if err != nil {
		return nil, err
	}
	if err := src.expectDrained(); err != nil {
		return nil, classify(err)
	}
	return tx, nil
}

// DecodeTransactionHex is DecodeTransaction for hex input.
func DecodeTransactionHex(ctx context.Context, s string, opts ...Option) (*Transaction, error) {
	data, err := decodeHex(s)
	if err != nil {
		return nil, classify(err)
	}
	return DecodeTransaction(ctx, data, opts...)
}

func (s *bytesSource) expectDrained() error {
	if n := s.Remaining(); n > 0 {
		return fmt.Errorf("%d unread bytes: %w", n, ErrTrailingData)
	}
	return nil
}
