package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/model"
)

// insertRows appends one row per item to a batch for query and sends it.
// The batch is aborted when appending fails.
func insertRows[T any](ctx context.Context, r *Repository, operation, query string, items []T, row func(T) []any) error {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe(operation, firstCoin(items), firstNetwork(items), len(items), err, start)
	}()

	if len(items) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, query)
	if err != nil {
		err = fmt.Errorf("prepare %s batch: %w", operation, err)
		return err
	}

	for i, item := range items {
		if err = batch.Append(row(item)...); err != nil {
			err = fmt.Errorf("append row %d: %w", i, err)
			_ = batch.Abort()
			return err
		}
	}

	if err = batch.Send(); err != nil {
		err = fmt.Errorf("send %s batch: %w", operation, err)
		return err
	}
	return nil
}

func firstCoin[T any](items []T) model.Coin {
	if len(items) == 0 {
		return ""
	}

	switch v := any(items[0]).(type) {
	case model.Block:
		return v.Coin
	case model.Transaction:
		return v.Coin
	case model.TransactionInput:
		return v.Coin
	case model.TransactionOutput:
		return v.Coin
	default:
		return ""
	}
}

func firstNetwork[T any](items []T) model.Network {
	if len(items) == 0 {
		return ""
	}

	switch v := any(items[0]).(type) {
	case model.Block:
		return v.Network
	case model.Transaction:
		return v.Network
	case model.TransactionInput:
		return v.Network
	case model.TransactionOutput:
		return v.Network
	default:
		return ""
	}
}
