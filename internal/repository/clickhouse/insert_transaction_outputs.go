package clickhouse

import (
	"context"

	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/model"
)

const insertTransactionOutputsQuery = `
INSERT INTO transaction_outputs (
	coin,
	network,
	block_height,
	txid,
	output_index,
	value,
	script_type,
	script_hex,
	script_asm,
	addresses
) VALUES`

// InsertTransactionOutputs stores transaction outputs in ClickHouse.
func (r *Repository) InsertTransactionOutputs(ctx context.Context, outputs []model.TransactionOutput) error {
	return insertRows(ctx, r, "insert_transaction_outputs", insertTransactionOutputsQuery, outputs, func(output model.TransactionOutput) []any {
		addresses := output.Addresses
		if addresses == nil {
			addresses = []string{}
		}
		return []any{
			string(output.Coin),
			string(output.Network),
			output.BlockHeight,
			output.TxID,
			output.Index,
			output.Value,
			output.ScriptType,
			output.ScriptHex,
			output.ScriptAsm,
			addresses,
		}
	})
}
