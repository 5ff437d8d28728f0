package state

import (
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/unstable"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/utxoset"
)

// inflight is a popped block whose ingestion has not completed yet.
type inflight struct {
	popped unstable.Popped

	txIndex int
	input   int
	output  int

	txs    map[chainhash.Hash]*wire.MsgTx
	spends map[wire.OutPoint]struct{}
}

func newInflight(popped unstable.Popped) *inflight {
	f := &inflight{
		popped: popped,
		txs:    make(map[chainhash.Hash]*wire.MsgTx, len(popped.Block.Transactions)),
		spends: make(map[wire.OutPoint]struct{}),
	}
	for _, tx := range popped.Block.Transactions {
		f.txs[tx.TxHash()] = tx
		if blockchain.IsCoinBaseTx(tx) {
			continue
		}
		for _, in := range tx.TxIn {
			f.spends[in.PreviousOutPoint] = struct{}{}
		}
	}
	return f
}

func (f *inflight) tip() Tip {
	return Tip{Height: f.popped.Height, Hash: f.popped.Block.BlockHash()}
}

// pendingView is the stable set as it will be once the in-flight block is fully
// ingested. The popped block has already left the cache, so its effects must stay
// visible to pushes and queries while its ingestion is paused.
type pendingView struct {
	utxos    *utxoset.UtxoSet
	inflight *inflight
}

func (v pendingView) TxOut(op wire.OutPoint) (utxoset.Entry, bool, error) {
	if v.inflight != nil {
		if _, ok := v.inflight.spends[op]; ok {
			return utxoset.Entry{}, false, nil
		}
	}
	entry, ok, err := v.utxos.TxOut(op)
	if err != nil || ok || v.inflight == nil {
		return entry, ok, err
	}

	tx, ok := v.inflight.txs[op.Hash]
	if !ok || int(op.Index) >= len(tx.TxOut) {
		return utxoset.Entry{}, false, nil
	}
	out := tx.TxOut[op.Index]
	if utxoset.IsProvablyUnspendable(out.PkScript) {
		return utxoset.Entry{}, false, nil
	}
	return utxoset.Entry{TxOut: *out, Height: v.inflight.popped.Height}, true, nil
}
