package blocktree

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// BlockChain is a sequence of blocks starting at the anchor, each extending the previous one.
type BlockChain []*wire.MsgBlock

// First returns the first block of the chain.
func (c BlockChain) First() *wire.MsgBlock {
	if len(c) == 0 {
		return nil
	}
	return c[0]
}

// Tip returns the last block of the chain.
func (c BlockChain) Tip() *wire.MsgBlock {
	if len(c) == 0 {
		return nil
	}
	return c[len(c)-1]
}

// Hashes returns the block hashes in chain order.
func (c BlockChain) Hashes() []chainhash.Hash {
	hashes := make([]chainhash.Hash, 0, len(c))
	for _, block := range c {
		hashes = append(hashes, block.BlockHash())
	}
	return hashes
}
