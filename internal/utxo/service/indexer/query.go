package indexer

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/blocktree"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/state"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/utxoset"
)

// ChainBlock is a block of an unstable chain with its height.
type ChainBlock struct {
	Hash   chainhash.Hash
	Height uint32
}

// Status summarizes the index.
type Status struct {
	StableTip      state.Tip
	HasStableTip   bool
	AnchorHeight   uint32
	TipHeight      uint32
	UnstableBlocks int
	CachedOutputs  int
	Ingesting      bool
}

func chainBlocks(chain blocktree.BlockChain, anchorHeight uint32) []ChainBlock {
	result := make([]ChainBlock, 0, len(chain))
	for i, block := range chain {
		result = append(result, ChainBlock{Hash: block.BlockHash(), Height: anchorHeight + uint32(i)})
	}
	return result
}

// MainChain returns the unstable main chain, anchor first.
func (ix *Indexer) MainChain() []ChainBlock {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return chainBlocks(ix.state.MainChain(), ix.state.AnchorHeight())
}

// Blocks returns the hashes of every unstable block.
func (ix *Indexer) Blocks() []chainhash.Hash {
	ix.mu.RLock()
	blocks := ix.state.Blocks()
	ix.mu.RUnlock()

	hashes := make([]chainhash.Hash, 0, len(blocks))
	for _, block := range blocks {
		hashes = append(hashes, block.BlockHash())
	}
	return hashes
}

// ChainWithTip returns the unstable chain from the anchor to tip.
func (ix *Indexer) ChainWithTip(tip chainhash.Hash) ([]ChainBlock, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	chain, ok := ix.state.ChainWithTip(tip)
	if !ok {
		return nil, false
	}
	return chainBlocks(chain, ix.state.AnchorHeight()), true
}

// Utxos returns the outputs owned by address, most recent first.
func (ix *Indexer) Utxos(address string) ([]model.Utxo, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.state.GetUtxos(address)
}

// Balance returns the total value owned by address.
func (ix *Indexer) Balance(address string) (int64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.state.GetBalance(address)
}

// TxOut returns the output at op.
func (ix *Indexer) TxOut(op wire.OutPoint) (utxoset.Entry, bool, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.state.TxOut(op)
}

// Status returns a snapshot of the index.
func (ix *Indexer) Status() Status {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	tip, hasTip := ix.state.StableTip()
	return Status{
		StableTip:      tip,
		HasStableTip:   hasTip,
		AnchorHeight:   ix.state.AnchorHeight(),
		TipHeight:      ix.state.TipHeight(),
		UnstableBlocks: ix.state.UnstableLen(),
		CachedOutputs:  ix.state.CachedOutputs(),
		Ingesting:      ix.state.Ingesting(),
	}
}
