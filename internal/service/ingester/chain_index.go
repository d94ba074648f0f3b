package ingester

import (
	"cmp"
	"slices"
	"sync"
)

// blockLocation identifies an entry of a blk file.
type blockLocation struct {
	path   string
	offset int64
}

type indexedBlock struct {
	hash string
	prev string
	loc  blockLocation
	// proven is the height the block proves on its own: genesis, or a
	// coinbase height commitment.
	proven *uint64

	seq      int
	height   uint64
	resolved bool
	// dead marks a block whose height cannot be resolved.
	dead bool
}

// chainIndex assigns heights to blocks found in blk files. Files hold blocks
// out of download order and can hold stale blocks, so heights are known only
// once every file has been scanned.
type chainIndex struct {
	mu     sync.Mutex
	blocks map[string]*indexedBlock
	dups   int
}

// chainResolution is the outcome of resolving a chainIndex.
type chainResolution struct {
	// heights holds the height of every entry on the selected chain.
	heights map[blockLocation]uint64
	// stale counts blocks with a known height that lost to another block
	// at the same height.
	stale int
	// unconnected counts blocks whose ancestry reaches neither genesis nor a
	// block with a height commitment.
	unconnected int
	duplicates  int
	tipHeight   uint64
}

func newChainIndex() *chainIndex {
	return &chainIndex{blocks: make(map[string]*indexedBlock)}
}

// add records b. A block seen twice keeps its first location.
func (c *chainIndex) add(b indexedBlock) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.blocks[b.hash]; ok {
		c.dups++
		return
	}
	b.seq = len(c.blocks)
	c.blocks[b.hash] = &b
}

func (c *chainIndex) resolve() chainResolution {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, b := range c.blocks {
		c.resolveHeight(b)
	}

	resolved := make([]*indexedBlock, 0, len(c.blocks))
	res := chainResolution{
		heights:    make(map[blockLocation]uint64),
		duplicates: c.dups,
	}
	for _, b := range c.blocks {
		if b.resolved {
			resolved = append(resolved, b)
		} else {
			res.unconnected++
		}
	}
	slices.SortFunc(resolved, func(a, b *indexedBlock) int {
		if n := cmp.Compare(b.height, a.height); n != 0 {
			return n
		}
		return cmp.Compare(a.seq, b.seq)
	})

	// Walk back from the highest block whose height is not yet taken; the
	// first walk follows the best tip, later ones pick up disjoint ranges.
	taken := make(map[uint64]struct{}, len(resolved))
	for _, tip := range resolved {
		for cur := tip; cur != nil && cur.resolved; cur = c.blocks[cur.prev] {
			if _, ok := taken[cur.height]; ok {
				break
			}
			taken[cur.height] = struct{}{}
			res.heights[cur.loc] = cur.height
		}
	}
	if len(resolved) > 0 {
		res.tipHeight = resolved[0].height
	}
	res.stale = len(resolved) - len(res.heights)
	return res
}

// resolveHeight derives the height of b from its nearest ancestor with a
// known height. Ancestors are linked before their own proof is consulted so
// that a chain reaching genesis never depends on a commitment.
func (c *chainIndex) resolveHeight(b *indexedBlock) {
	var path []*indexedBlock
	cur := b
	for cur != nil && !cur.resolved && !cur.dead && len(path) <= len(c.blocks) {
		path = append(path, cur)
		parent := c.blocks[cur.prev]
		if parent == nil {
			break
		}
		cur = parent
	}

	if len(path) == 0 {
		return
	}

	// Start from the parent of the oldest block when it is known, otherwise
	// from the oldest block that proves its own height.
	start := len(path) - 1
	var (
		height uint64
		ok     bool
	)
	if parent := c.blocks[path[start].prev]; parent != nil && parent.resolved {
		height, ok = parent.height+1, true
	} else {
		for ; start >= 0; start-- {
			if p := path[start].proven; p != nil {
				height, ok = *p, true
				break
			}
		}
	}
	for _, b := range path[start+1:] {
		b.dead = true
	}
	if !ok {
		return
	}

	for i := start; i >= 0; i-- {
		path[i].height = height
		path[i].resolved = true
		height++
	}
}
