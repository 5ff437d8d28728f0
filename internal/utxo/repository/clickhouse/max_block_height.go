package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/model"
)

const maxBlockHeightQuery = `
SELECT max(height) AS max_height, count() AS blocks
FROM utxo_blocks FINAL
WHERE coin = ? AND network = ?`

// MaxBlockHeight returns the highest archived height for a coin/network.
// The boolean is false when nothing was archived yet.
func (r *Repository) MaxBlockHeight(ctx context.Context, coin model.Coin, network model.Network) (height uint64, found bool, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("max_block_height", coin, network, err, start)
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
		err = fmt.Errorf("max block height not found")
		return 0, false, err
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
