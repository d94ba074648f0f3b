package clickhouse

import (
	"context"

	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/model"
)

const insertBlocksQuery = `
INSERT INTO blocks (
	coin,
	network,
	height,
	hash,
	prev_block_hash,
	timestamp,
	version,
	merkleroot,
	bits,
	nonce,
	difficulty,
	size,
	weight,
	tx_count,
	coinbase_value
) VALUES`

// InsertBlocks stores block rows in ClickHouse.
func (r *Repository) InsertBlocks(ctx context.Context, blocks []model.Block) error {
	return insertRows(ctx, r, "insert_blocks", insertBlocksQuery, blocks, func(block model.Block) []any {
		return []any{
			string(block.Coin),
			string(block.Network),
			block.Height,
			block.Hash,
			block.PrevBlockHash,
			block.Timestamp,
			block.Version,
			block.MerkleRoot,
			block.Bits,
			block.Nonce,
			block.Difficulty,
			block.Size,
			block.Weight,
			block.TXCount,
			block.CoinbaseValue,
		}
	})
}
