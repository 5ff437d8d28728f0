package unstable

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/utxoset"
)

var (
	// ErrUnresolvedInput is returned when a block spends an output found neither
	// in the stable set nor in the cache.
	ErrUnresolvedInput = errors.New("input cannot be resolved")
	// ErrBlockAlreadyCached is returned when a block is inserted into the cache twice.
	ErrBlockAlreadyCached = errors.New("block already cached")
)

type (
	// UtxoView is the stable UTXO set as seen by the cache.
	UtxoView interface {
		TxOut(op wire.OutPoint) (utxoset.Entry, bool, error)
	}
)

// Chain is the set of blocks on one anchor-to-tip path.
type Chain map[chainhash.Hash]struct{}

// NewChain collects the hashes of blocks.
func NewChain(blocks []*wire.MsgBlock) Chain {
	chain := make(Chain, len(blocks))
	for _, block := range blocks {
		chain[block.BlockHash()] = struct{}{}
	}
	return chain
}

// Has reports whether hash is on the chain.
func (c Chain) Has(hash chainhash.Hash) bool {
	_, ok := c[hash]
	return ok
}

type cachedOutput struct {
	txOut wire.TxOut
	// creators maps every block that created the output to its height.
	creators map[chainhash.Hash]uint32
}

type blockOutputs struct {
	created []wire.OutPoint
	spent   []wire.OutPoint
}

// TxOutCache indexes the outputs created by unstable blocks.
//
// The same transaction may be mined in competing blocks, so an output is shared
// by every block that created it and lives until the last of them is removed.
// Creations and spends are recorded per block, and lookups are answered for a
// given chain.
type TxOutCache struct {
	outputs map[wire.OutPoint]*cachedOutput
	spent   map[wire.OutPoint]map[chainhash.Hash]struct{}
	blocks  map[chainhash.Hash]blockOutputs
}

// NewTxOutCache creates an empty cache.
func NewTxOutCache() *TxOutCache {
	return &TxOutCache{
		outputs: make(map[wire.OutPoint]*cachedOutput),
		spent:   make(map[wire.OutPoint]map[chainhash.Hash]struct{}),
		blocks:  make(map[chainhash.Hash]blockOutputs),
	}
}

// Insert records the outputs block creates at height and the outputs it spends.
// Every input must resolve against utxos, the cache, or an earlier transaction of
// the same block. Nothing is recorded when any input fails to resolve.
func (c *TxOutCache) Insert(utxos UtxoView, block *wire.MsgBlock, height uint32) error {
	hash := block.BlockHash()
	if _, ok := c.blocks[hash]; ok {
		return fmt.Errorf("block %s: %w", hash, ErrBlockAlreadyCached)
	}

	created := make(map[wire.OutPoint]*wire.TxOut)
	var record blockOutputs
	for _, tx := range block.Transactions {
		if !blockchain.IsCoinBaseTx(tx) {
			for _, in := range tx.TxIn {
				op := in.PreviousOutPoint
				found, err := c.resolve(utxos, created, op)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("block %s spends %s: %w", hash, op, ErrUnresolvedInput)
				}
				record.spent = append(record.spent, op)
			}
		}

		txid := tx.TxHash()
		for i, out := range tx.TxOut {
			if utxoset.IsProvablyUnspendable(out.PkScript) {
				continue
			}
			op := wire.OutPoint{Hash: txid, Index: uint32(i)}
			created[op] = out
			record.created = append(record.created, op)
		}
	}

	for _, op := range record.created {
		entry, ok := c.outputs[op]
		if !ok {
			entry = &cachedOutput{
				txOut:    *created[op],
				creators: make(map[chainhash.Hash]uint32, 1),
			}
			c.outputs[op] = entry
		}
		entry.creators[hash] = height
	}
	for _, op := range record.spent {
		spenders, ok := c.spent[op]
		if !ok {
			spenders = make(map[chainhash.Hash]struct{}, 1)
			c.spent[op] = spenders
		}
		spenders[hash] = struct{}{}
	}
	c.blocks[hash] = record
	return nil
}

func (c *TxOutCache) resolve(utxos UtxoView, created map[wire.OutPoint]*wire.TxOut, op wire.OutPoint) (bool, error) {
	if _, ok := created[op]; ok {
		return true, nil
	}
	if _, ok := c.outputs[op]; ok {
		return true, nil
	}
	_, ok, err := utxos.TxOut(op)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", op, err)
	}
	return ok, nil
}

// TxOut returns the output at op if a block of chain created it and no block of
// chain spends it. The height is the one of the creating block on chain.
func (c *TxOutCache) TxOut(op wire.OutPoint, chain Chain) (wire.TxOut, uint32, bool) {
	entry, ok := c.outputs[op]
	if !ok {
		return wire.TxOut{}, 0, false
	}
	var (
		height  uint32
		created bool
	)
	for creator, h := range entry.creators {
		if chain.Has(creator) && (!created || h < height) {
			height, created = h, true
		}
	}
	if !created || c.Spent(op, chain) {
		return wire.TxOut{}, 0, false
	}
	return entry.txOut, height, true
}

// Spent reports whether a block of chain spends op.
func (c *TxOutCache) Spent(op wire.OutPoint, chain Chain) bool {
	for spender := range c.spent[op] {
		if chain.Has(spender) {
			return true
		}
	}
	return false
}

// Remove forgets everything block hash contributed to the cache.
func (c *TxOutCache) Remove(hash chainhash.Hash) {
	record, ok := c.blocks[hash]
	if !ok {
		return
	}
	for _, op := range record.created {
		entry := c.outputs[op]
		if entry == nil {
			continue
		}
		delete(entry.creators, hash)
		if len(entry.creators) == 0 {
			delete(c.outputs, op)
		}
	}
	for _, op := range record.spent {
		spenders := c.spent[op]
		delete(spenders, hash)
		if len(spenders) == 0 {
			delete(c.spent, op)
		}
	}
	delete(c.blocks, hash)
}

// Contains reports whether block hash was inserted and not yet removed.
func (c *TxOutCache) Contains(hash chainhash.Hash) bool {
	_, ok := c.blocks[hash]
	return ok
}

// Len returns the number of cached outputs, spent or not.
func (c *TxOutCache) Len() int {
	return len(c.outputs)
}
