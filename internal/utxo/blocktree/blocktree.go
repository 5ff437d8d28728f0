// Package blocktree implements a tree of candidate blocks rooted at the anchor block.
//
// Nodes live in an arena and refer to their children by index. A node never
// points back to its parent; discarding a subtree frees its slots for reuse.
package blocktree

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

var (
	// ErrDoesNotExtendTree is returned when a block's parent is not in the tree.
	ErrDoesNotExtendTree = errors.New("block does not extend tree")
	// ErrBlockAlreadyExists is returned when a block with the same hash is already in the tree.
	ErrBlockAlreadyExists = errors.New("block already exists in tree")
	// ErrNotAnchorChild is returned when re-rooting onto a block that is not a child of the anchor.
	ErrNotAnchorChild = errors.New("block is not a child of the anchor")
)

// DoesNotExtendTreeError describes an orphan block.
type DoesNotExtendTreeError struct {
	Hash   chainhash.Hash
	Parent chainhash.Hash
}

func (e *DoesNotExtendTreeError) Error() string {
	return fmt.Sprintf("block %s: parent %s not found: %s", e.Hash, e.Parent, ErrDoesNotExtendTree)
}

func (e *DoesNotExtendTreeError) Unwrap() error {
	return ErrDoesNotExtendTree
}

type nodeID int

type node struct {
	block    *wire.MsgBlock
	hash     chainhash.Hash
	height   uint32
	children []nodeID
}

// BlockTree is a tree of blocks. The root is the anchor.
type BlockTree struct {
	nodes []node
	free  []nodeID
	root  nodeID
	index map[chainhash.Hash]nodeID
}

// New creates a tree holding only the anchor block at the given height.
func New(anchor *wire.MsgBlock, height uint32) *BlockTree {
	t := &BlockTree{index: make(map[chainhash.Hash]nodeID)}
	t.root = t.alloc(anchor, height)
	return t
}

func (t *BlockTree) alloc(block *wire.MsgBlock, height uint32) nodeID {
	n := node{block: block, hash: block.BlockHash(), height: height}

	var id nodeID
	if len(t.free) > 0 {
		id = t.free[len(t.free)-1]
		t.free = t.free[:len(t.free)-1]
		t.nodes[id] = n
	} else {
		id = nodeID(len(t.nodes))
		t.nodes = append(t.nodes, n)
	}
	t.index[n.hash] = id
	return id
}

func (t *BlockTree) release(id nodeID) *wire.MsgBlock {
	n := t.nodes[id]
	delete(t.index, n.hash)
	t.nodes[id] = node{}
	t.free = append(t.free, id)
	return n.block
}

// Root returns the anchor block.
func (t *BlockTree) Root() *wire.MsgBlock {
	return t.nodes[t.root].block
}

// RootHash returns the anchor block hash.
func (t *BlockTree) RootHash() chainhash.Hash {
	return t.nodes[t.root].hash
}

// RootHeight returns the anchor block height.
func (t *BlockTree) RootHeight() uint32 {
	return t.nodes[t.root].height
}

// Len returns the number of blocks in the tree, anchor included.
func (t *BlockTree) Len() int {
	return len(t.index)
}

// Contains reports whether a block with the given hash is in the tree.
func (t *BlockTree) Contains(hash chainhash.Hash) bool {
	_, ok := t.index[hash]
	return ok
}

// Height returns the height of the block with the given hash.
func (t *BlockTree) Height(hash chainhash.Hash) (uint32, bool) {
	id, ok := t.index[hash]
	if !ok {
		return 0, false
	}
	return t.nodes[id].height, true
}

// Extend attaches block as the last child of its parent.
func (t *BlockTree) Extend(block *wire.MsgBlock) error {
	hash := block.BlockHash()
	if _, ok := t.index[hash]; ok {
		return fmt.Errorf("block %s: %w", hash, ErrBlockAlreadyExists)
	}

	parent, ok := t.index[block.Header.PrevBlock]
	if !ok {
		return &DoesNotExtendTreeError{Hash: hash, Parent: block.Header.PrevBlock}
	}

	id := t.alloc(block, t.nodes[parent].height+1)
	t.nodes[parent].children = append(t.nodes[parent].children, id)
	return nil
}

// Depth returns the depth of the whole tree, i.e. the depth of the anchor.
func (t *BlockTree) Depth() int {
	return t.depth(t.root)
}

func (t *BlockTree) depth(id nodeID) int {
	deepest := 0
	for _, child := range t.nodes[id].children {
		if d := t.depth(child); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// Child describes a direct child of the anchor.
type Child struct {
	Block *wire.MsgBlock
	Hash  chainhash.Hash
	Depth int
}

// AnchorChildren returns the anchor's children in insertion order with their depths.
func (t *BlockTree) AnchorChildren() []Child {
	children := t.nodes[t.root].children
	result := make([]Child, 0, len(children))
	for _, id := range children {
		result = append(result, Child{
			Block: t.nodes[id].block,
			Hash:  t.nodes[id].hash,
			Depth: t.depth(id),
		})
	}
	return result
}

// Reroot makes the given anchor child the new anchor. The old anchor is returned
// together with the blocks of every discarded sibling subtree.
func (t *BlockTree) Reroot(child chainhash.Hash) (*wire.MsgBlock, []*wire.MsgBlock, error) {
	newRoot, ok := t.index[child]
	if !ok {
		return nil, nil, fmt.Errorf("block %s: %w", child, ErrNotAnchorChild)
	}

	siblings := t.nodes[t.root].children
	found := false
	for _, id := range siblings {
		if id == newRoot {
			found = true
			break
		}
	}
	if !found {
		return nil, nil, fmt.Errorf("block %s: %w", child, ErrNotAnchorChild)
	}

	var discarded []*wire.MsgBlock
	for _, id := range siblings {
		if id != newRoot {
			discarded = t.releaseSubtree(id, discarded)
		}
	}
	old := t.release(t.root)
	t.root = newRoot
	return old, discarded, nil
}

func (t *BlockTree) releaseSubtree(id nodeID, acc []*wire.MsgBlock) []*wire.MsgBlock {
	for _, child := range t.nodes[id].children {
		acc = t.releaseSubtree(child, acc)
	}
	return append(acc, t.release(id))
}

// Blockchains returns every maximal path from the anchor to a leaf.
// Each chain starts with the anchor.
func (t *BlockTree) Blockchains() []BlockChain {
	var chains []BlockChain
	t.walk(t.root, nil, func(path BlockChain) {
		chains = append(chains, path)
	})
	return chains
}

func (t *BlockTree) walk(id nodeID, prefix BlockChain, leaf func(BlockChain)) {
	path := append(prefix[:len(prefix):len(prefix)], t.nodes[id].block)
	children := t.nodes[id].children
	if len(children) == 0 {
		leaf(path)
		return
	}
	for _, child := range children {
		t.walk(child, path, leaf)
	}
}

// Blocks returns every block in the tree, anchor first, in depth-first order.
func (t *BlockTree) Blocks() []*wire.MsgBlock {
	blocks := make([]*wire.MsgBlock, 0, t.Len())
	var visit func(nodeID)
	visit = func(id nodeID) {
		blocks = append(blocks, t.nodes[id].block)
		for _, child := range t.nodes[id].children {
			visit(child)
		}
	}
	visit(t.root)
	return blocks
}

// ChainWithTip returns the chain from the anchor to the block with the given hash.
func (t *BlockTree) ChainWithTip(tip chainhash.Hash) (BlockChain, bool) {
	if _, ok := t.index[tip]; !ok {
		return nil, false
	}
	return t.pathTo(t.root, tip, nil)
}

func (t *BlockTree) pathTo(id nodeID, tip chainhash.Hash, prefix BlockChain) (BlockChain, bool) {
	path := append(prefix[:len(prefix):len(prefix)], t.nodes[id].block)
	if t.nodes[id].hash == tip {
		return path, true
	}
	for _, child := range t.nodes[id].children {
		if found, ok := t.pathTo(child, tip, path); ok {
			return found, true
		}
	}
	return nil, false
}
