package transport

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/service/indexer"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/utxoset"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// UtxoIndex is the read side of the indexer.
	UtxoIndex interface {
		MainChain() []indexer.ChainBlock
		Blocks() []chainhash.Hash
		ChainWithTip(tip chainhash.Hash) ([]indexer.ChainBlock, bool)
		Utxos(address string) ([]model.Utxo, error)
		Balance(address string) (int64, error)
		TxOut(op wire.OutPoint) (utxoset.Entry, bool, error)
		Status() indexer.Status
	}
)
