package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/model"
)

const maxBlockHeightQuery = `
SELECT max(height) AS max_height, count() AS blocks
FROM blocks
WHERE coin = ? AND network = ?`

// MaxBlockHeight returns the maximum height stored for a coin/network. ok is
// false when nothing is stored yet.
func (r *Repository) MaxBlockHeight(ctx context.Context, coin model.Coin, network model.Network) (height uint64, ok bool, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("max_block_height", coin, network, 0, err, start)
	}()

	rows, err := r.conn.Query(ctx, maxBlockHeightQuery, string(coin), string(network))
	if err != nil {
		return 0, false, fmt.Errorf("query max block height: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", closeErr)
		}
	}()

	if !rows.Next() {
		err = rows.Err()
		if err == nil {
			err = errors.New("max block height not found")
		}
		return 0, false, fmt.Errorf("read max block height: %w", err)
	}

	var count uint64
	if err = rows.Scan(&height, &count); err != nil {
		return 0, false, fmt.Errorf("scan max block height: %w", err)
	}
	if err = rows.Err(); err != nil {
		return 0, false, fmt.Errorf("iterate max block height: %w", err)
	}

	return height, count > 0, nil
}
