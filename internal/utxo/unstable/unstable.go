// Package unstable maintains the blocks that are not final yet: a tree of candidate
// blocks rooted at the anchor, the stability rule deciding when the anchor's child
// becomes final, and a cache of the outputs created by those blocks.
//
// A child C of the anchor is stable once it has at least threshold descendants on
// its longest path and its depth exceeds the depth of every sibling by at least
// threshold.
package unstable

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/blocktree"
)

// Popped is a block that became final.
type Popped struct {
	Block  *wire.MsgBlock
	Height uint32
	// Discarded holds the blocks of the sibling subtrees that lost.
	Discarded []*wire.MsgBlock
}

// UnstableBlocks holds every unstable block.
type UnstableBlocks struct {
	threshold uint32
	tree      *blocktree.BlockTree
	cache     *TxOutCache
}

// New creates the unstable blocks with anchor at anchorHeight as the only block.
// The anchor's outputs are cached until it is popped.
func New(utxos UtxoView, threshold uint32, anchor *wire.MsgBlock, anchorHeight uint32) (*UnstableBlocks, error) {
	cache := NewTxOutCache()
	if err := cache.Insert(utxos, anchor, anchorHeight); err != nil {
		return nil, fmt.Errorf("cache anchor: %w", err)
	}
	return &UnstableBlocks{
		threshold: threshold,
		tree:      blocktree.New(anchor, anchorHeight),
		cache:     cache,
	}, nil
}

// Push caches block's outputs and attaches it to its parent. On error nothing changes.
func (u *UnstableBlocks) Push(utxos UtxoView, block *wire.MsgBlock) error {
	hash := block.BlockHash()
	if u.tree.Contains(hash) {
		return fmt.Errorf("block %s: %w", hash, blocktree.ErrBlockAlreadyExists)
	}
	parentHeight, ok := u.tree.Height(block.Header.PrevBlock)
	if !ok {
		return &blocktree.DoesNotExtendTreeError{Hash: hash, Parent: block.Header.PrevBlock}
	}

	if err := u.cache.Insert(utxos, block, parentHeight+1); err != nil {
		return err
	}
	if err := u.tree.Extend(block); err != nil {
		u.cache.Remove(hash)
		return err
	}
	return nil
}

// Pop finalizes the anchor if one of its children is stable. The stable child
// becomes the new anchor and its siblings are dropped along with their subtrees.
// Among children of equal depth the earliest pushed ranks first.
// At most one block is popped per call.
func (u *UnstableBlocks) Pop() (Popped, bool) {
	children := u.tree.AnchorChildren()
	if len(children) == 0 {
		return Popped{}, false
	}

	sort.SliceStable(children, func(i, j int) bool {
		return children[i].Depth > children[j].Depth
	})
	deepest := children[0].Depth
	second := 0
	if len(children) > 1 {
		second = children[1].Depth
	}
	threshold := int(u.threshold)
	if deepest <= threshold || deepest-second < threshold {
		return Popped{}, false
	}

	height := u.tree.RootHeight()
	anchor, discarded, err := u.tree.Reroot(children[0].Hash)
	if err != nil {
		// The hash comes straight from AnchorChildren.
		panic(fmt.Sprintf("reroot onto anchor child: %v", err))
	}

	u.cache.Remove(anchor.BlockHash())
	for _, block := range discarded {
		u.cache.Remove(block.BlockHash())
	}
	return Popped{Block: anchor, Height: height, Discarded: discarded}, true
}

// MainChain returns the longest chain whose tip is uncontested, starting at the anchor.
// When several chains share the maximal length, only their common prefix is returned.
func (u *UnstableBlocks) MainChain() blocktree.BlockChain {
	chains := u.tree.Blockchains()

	longest := 0
	for _, chain := range chains {
		if len(chain) > longest {
			longest = len(chain)
		}
	}
	candidates := chains[:0:0]
	for _, chain := range chains {
		if len(chain) == longest {
			candidates = append(candidates, chain)
		}
	}

	agreed := blocktree.BlockChain{candidates[0][0]}
	for i := 1; i < longest; i++ {
		hash := candidates[0][i].BlockHash()
		for _, chain := range candidates[1:] {
			if chain[i].BlockHash() != hash {
				return agreed
			}
		}
		agreed = append(agreed, candidates[0][i])
	}
	return agreed
}

// Blocks returns every unstable block, the anchor included.
func (u *UnstableBlocks) Blocks() []*wire.MsgBlock {
	return u.tree.Blocks()
}

// ChainWithTip returns the chain from the anchor to tip.
func (u *UnstableBlocks) ChainWithTip(tip chainhash.Hash) (blocktree.BlockChain, bool) {
	return u.tree.ChainWithTip(tip)
}

// TxOut returns an output created and not spent on the main chain.
func (u *UnstableBlocks) TxOut(op wire.OutPoint) (wire.TxOut, uint32, bool) {
	return u.cache.TxOut(op, NewChain(u.MainChain()))
}

// TxOutOnChain returns an output created and not spent on the chain ending at tip.
func (u *UnstableBlocks) TxOutOnChain(op wire.OutPoint, tip chainhash.Hash) (wire.TxOut, uint32, bool) {
	chain, ok := u.tree.ChainWithTip(tip)
	if !ok {
		return wire.TxOut{}, 0, false
	}
	return u.cache.TxOut(op, NewChain(chain))
}

// Spent reports whether a block of the main chain spends op.
func (u *UnstableBlocks) Spent(op wire.OutPoint) bool {
	return u.cache.Spent(op, NewChain(u.MainChain()))
}

// Anchor returns the anchor block.
func (u *UnstableBlocks) Anchor() *wire.MsgBlock {
	return u.tree.Root()
}

// AnchorHeight returns the anchor height.
func (u *UnstableBlocks) AnchorHeight() uint32 {
	return u.tree.RootHeight()
}

// TipHeight returns the height of the deepest unstable block.
func (u *UnstableBlocks) TipHeight() uint32 {
	return u.tree.RootHeight() + uint32(u.tree.Depth()) - 1
}

// Height returns the height of an unstable block.
func (u *UnstableBlocks) Height(hash chainhash.Hash) (uint32, bool) {
	return u.tree.Height(hash)
}

// Contains reports whether hash is an unstable block.
func (u *UnstableBlocks) Contains(hash chainhash.Hash) bool {
	return u.tree.Contains(hash)
}

// Len returns the number of unstable blocks, the anchor included.
func (u *UnstableBlocks) Len() int {
	return u.tree.Len()
}

// CachedOutputs returns the number of outputs in the cache.
func (u *UnstableBlocks) CachedOutputs() int {
	return u.cache.Len()
}

// Threshold returns the stability threshold.
func (u *UnstableBlocks) Threshold() uint32 {
	return u.threshold
}
