package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/model"
)

const insertTransactionOutputsQuery = `
INSERT INTO utxo_transaction_outputs (
	coin,
	network,
	block_height,
	block_timestamp,
	txid,
	output_index,
	value,
	script_type,
	script_hex,
	address
) VALUES`

// InsertTransactionOutputs stores the outputs created by finalized blocks.
func (r *Repository) InsertTransactionOutputs(ctx context.Context, outputs []model.TransactionOutput) error {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("insert_transaction_outputs", firstCoin(outputs), firstNetwork(outputs), err, start)
	}()

	if len(outputs) == 0 {
		return nil
	}

	err = appendAll(ctx, r.conn, insertTransactionOutputsQuery, outputs, outputRow)
	if err != nil {
		err = fmt.Errorf("insert transaction outputs: %w", err)
	}
	return err
}

func outputRow(output model.TransactionOutput) []any {
	return []any{
		string(output.Coin),
		string(output.Network),
		output.BlockHeight,
		output.BlockTime,
		output.TxID,
		output.Index,
		output.Value,
		output.ScriptType,
		output.ScriptHex,
		output.Address,
	}
}
