package decoder

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Footprint is the byte accounting of everything read since the last Reset.
type Footprint struct {
	// Hash is the double SHA-256 of the base bytes in display order.
	Hash string
	// Size counts every byte read.
	Size int
	// BaseSize counts the bytes not flagged as excluded.
	BaseSize int
	// Weight is 3*BaseSize + Size.
	Weight int
}

type chunk struct {
	start, end int
	excluded   bool
}

// Accumulator wraps a Source and logs every chunk read through it so that the
// id and weight of a transaction can be derived in one forward pass. Chunks
// can be excluded from the base view after the fact (MarkRecent) or as they
// arrive (SetAutoExclude).
//
// An Accumulator belongs to a single decode sequence and is not safe for
// concurrent use. Reset it between transactions; its buffers are reused.
type Accumulator struct {
	src    Source
	arena  []byte
	chunks []chunk
	auto   bool
	scrap  []byte
}

// NewAccumulator wraps src.
func NewAccumulator(src Source) *Accumulator {
	return &Accumulator{src: src}
}

// Read pulls n bytes from the underlying source, logs them and returns them
// unchanged.
func (a *Accumulator) Read(ctx context.Context, n int) ([]byte, error) {
	b, err := readExact(ctx, a.src, n)
	if err != nil {
		return nil, err
	}

	start := len(a.arena)
	a.arena = append(a.arena, b...)
	a.chunks = append(a.chunks, chunk{start: start, end: len(a.arena), excluded: a.auto})
	return b, nil
}

// MarkRecent excludes the k most recently logged chunks from the base view.
func (a *Accumulator) MarkRecent(k int) {
	for i := len(a.chunks) - 1; i >= 0 && k > 0; i, k = i-1, k-1 {
		a.chunks[i].excluded = true
	}
}

// SetAutoExclude toggles exclusion of every chunk read from now on.
func (a *Accumulator) SetAutoExclude(on bool) {
	a.auto = on
}

// Snapshot computes the footprint of everything read since the last Reset.
// Excluded chunks are removed from the base view, not zero-filled.
func (a *Accumulator) Snapshot() Footprint {
	base := a.arena
	if a.hasExcluded() {
		a.scrap = a.scrap[:0]
		for _, c := range a.chunks {
			if !c.excluded {
				a.scrap = append(a.scrap, a.arena[c.start:c.end]...)
			}
		}
		base = a.scrap
	}

	return Footprint{
		Hash:     chainhash.DoubleHashH(base).String(),
		Size:     len(a.arena),
		BaseSize: len(base),
		Weight:   3*len(base) + len(a.arena),
	}
}

// Reset clears the chunk log and all exclusion state.
func (a *Accumulator) Reset() {
	a.arena = a.arena[:0]
	a.chunks = a.chunks[:0]
	a.auto = false
}

func (a *Accumulator) hasExcluded() bool {
	for _, c := range a.chunks {
		if c.excluded {
			return true
		}
	}
	return false
}
