package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/model"
)

const insertBlocksQuery = `
INSERT INTO utxo_blocks (
	coin,
	network,
	height,
	hash,
	prev_hash,
	timestamp,
	version,
	merkleroot,
	bits,
	nonce,
	size,
	tx_count,
	status
) VALUES`

// InsertBlocks stores finalized block rows.
func (r *Repository) InsertBlocks(ctx context.Context, blocks []model.Block) error {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("insert_blocks", firstCoin(blocks), firstNetwork(blocks), err, start)
	}()

	if len(blocks) == 0 {
		return nil
	}

	err = appendAll(ctx, r.conn, insertBlocksQuery, blocks, blockRow)
	if err != nil {
		err = fmt.Errorf("insert blocks: %w", err)
	}
	return err
}

func blockRow(block model.Block) []any {
	return []any{
		string(block.Coin),
		string(block.Network),
		block.Height,
		block.Hash,
		block.PrevHash,
		block.Timestamp,
		block.Version,
		block.MerkleRoot,
		block.Bits,
		block.Nonce,
		block.Size,
		block.TXCount,
		string(block.Status),
	}
}
