package bitcoin

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/pkg/safe"
)

// FinalizedBlockConverter maps finalized raw blocks to archive rows.
type FinalizedBlockConverter struct {
	decoder *ScriptDecoder
	network model.Network
}

// NewFinalizedBlockConverter creates a converter for the given network.
func NewFinalizedBlockConverter(decoder *ScriptDecoder, network model.Network) *FinalizedBlockConverter {
	return &FinalizedBlockConverter{decoder: decoder, network: network}
}

// Convert maps block at height into a block row and one row per output.
func (c *FinalizedBlockConverter) Convert(block *wire.MsgBlock, height uint32) (model.FinalizedBlock, error) {
	txCount, err := safe.Uint32(len(block.Transactions))
	if err != nil {
		return model.FinalizedBlock{}, fmt.Errorf("block %d tx count overflow: %w", height, err)
	}
	size, err := safe.Uint32(block.SerializeSize())
	if err != nil {
		return model.FinalizedBlock{}, fmt.Errorf("block %d size overflow: %w", height, err)
	}

	header := block.Header
	row := model.Block{
		Coin:       model.BTC,
		Network:    c.network,
		Height:     uint64(height),
		Hash:       block.BlockHash().String(),
		PrevHash:   header.PrevBlock.String(),
		Timestamp:  header.Timestamp.UTC(),
		Version:    header.Version,
		MerkleRoot: header.MerkleRoot.String(),
		Bits:       header.Bits,
		Nonce:      header.Nonce,
		Size:       size,
		TXCount:    txCount,
		Status:     model.BlockFinalized,
	}

	outputs := make([]model.TransactionOutput, 0, len(block.Transactions))
	for _, tx := range block.Transactions {
		txid := tx.TxHash().String()
		for idx, out := range tx.TxOut {
			index, err := safe.Uint32(idx)
			if err != nil {
				return model.FinalizedBlock{}, fmt.Errorf("tx %s output index overflow: %w", txid, err)
			}
			address, _ := c.decoder.Resolve(out.PkScript)
			outputs = append(outputs, model.TransactionOutput{
				Coin:        model.BTC,
				Network:     c.network,
				BlockHeight: uint64(height),
				BlockTime:   row.Timestamp,
				TxID:        txid,
				Index:       index,
				Value:       out.Value,
				ScriptType:  ScriptType(out.PkScript),
				ScriptHex:   hex.EncodeToString(out.PkScript),
				Address:     address,
			})
		}
	}

	return model.FinalizedBlock{Block: row, Outputs: outputs}, nil
}
