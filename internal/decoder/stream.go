package decoder

import (
	"context"
	"fmt"
	"io"
	"iter"
	"time"

	"go.uber.org/zap"
)

// Parser turns one Source into a lazy, forward-only sequence of records. A
// Parser can be iterated once.
type Parser struct {
	src      Source
	opts     options
	consumed bool
}

// NewParser returns a Parser reading a block from src.
func NewParser(src Source, opts ...Option) *Parser {
	return &Parser{src: src, opts: newOptions(opts)}
}

// Records yields the header, then every transaction in block order. When the
// first transaction is a coinbase its Coinbase projection is yielded right
// before it. The first error ends the sequence; records already yielded
// stand. If the source implements io.Closer it is closed exactly once when
// the sequence ends, whether it completed, failed or was abandoned.
func (p *Parser) Records(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		if p.consumed {
			yield(nil, classify(ErrConsumed))
			return
		}
		p.consumed = true

		started := time.Now()
		records := 0
		var err error
		defer func() {
			p.release()
			p.opts.observer.ObserveSequence(records, err, started)
		}()

		emit := func(r Record) bool {
			records++
			p.opts.observer.ObserveRecord(r)
			return yield(r, nil)
		}

		var header *Header
		header, err = ReadHeader(ctx, p.src, !p.opts.bareHeader)
		if err != nil {
			err = classify(fmt.Errorf("decode header: %w", err))
			yield(nil, err)
			return
		}
		p.opts.logger.Debug("header decoded",
			zap.String("hash", header.Hash),
			zap.Uint64("tx_count", header.TxCount))
		if !emit(header) {
			return
		}

		txs := newTransactionDecoder(NewAccumulator(p.src), p.opts)
		for i := uint64(0); i < header.TxCount; i++ {
			var tx *Transaction
			tx, err = txs.decode(ctx)
			if err != nil {
				err = classify(fmt.Errorf("decode transaction %d: %w", i, err))
				yield(nil, err)
				return
			}

			if i == 0 {
				if cb, ok := ExtractCoinbase(tx); ok {
					if !emit(cb) {
						return
					}
				}
			}
			if !emit(tx) {
				return
			}
		}
	}
}

func (p *Parser) release() {
	closer, ok := p.src.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		p.opts.logger.Warn("close source failed", zap.Error(err))
	}
}
