package clickhouse

import (
	"context"

	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/model"
)

const insertTransactionInputsQuery = `
INSERT INTO transaction_inputs (
	coin,
	network,
	block_height,
	txid,
	input_index,
	prev_txid,
	prev_vout,
	sequence,
	is_coinbase,
	script_sig_hex,
	script_sig_asm,
	witness
) VALUES`

// InsertTransactionInputs stores transaction inputs in ClickHouse.
func (r *Repository) InsertTransactionInputs(ctx context.Context, inputs []model.TransactionInput) error {
	return insertRows(ctx, r, "insert_transaction_inputs", insertTransactionInputsQuery, inputs, func(input model.TransactionInput) []any {
		witness := input.Witness
		if witness == nil {
			witness = []string{}
		}
		return []any{
			string(input.Coin),
			string(input.Network),
			input.BlockHeight,
			input.TxID,
			input.Index,
			input.PrevTxID,
			input.PrevVout,
			input.Sequence,
			input.IsCoinbase,
			input.ScriptSigHex,
			input.ScriptSigAsm,
			witness,
		}
	})
}
