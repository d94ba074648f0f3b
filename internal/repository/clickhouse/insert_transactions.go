package clickhouse

import (
	"context"

	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/model"
)

const insertTransactionsQuery = `
INSERT INTO transactions (
	coin,
	network,
	txid,
	block_height,
	block_hash,
	position,
	timestamp,
	size,
	vsize,
	weight,
	version,
	locktime,
	input_count,
	output_count,
	has_witness,
	is_coinbase
) VALUES`

// InsertTransactions stores transaction rows in ClickHouse.
func (r *Repository) InsertTransactions(ctx context.Context, txs []model.Transaction) error {
	return insertRows(ctx, r, "insert_transactions", insertTransactionsQuery, txs, func(tx model.Transaction) []any {
		return []any{
			string(tx.Coin),
			string(tx.Network),
			tx.TxID,
			tx.BlockHeight,
			tx.BlockHash,
			tx.Position,
			tx.Timestamp,
			tx.Size,
			tx.VSize,
			tx.Weight,
			tx.Version,
			tx.LockTime,
			tx.InputCount,
			tx.OutputCount,
			tx.HasWitness,
			tx.IsCoinbase,
		}
	})
}
