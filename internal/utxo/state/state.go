// Package state combines the stable UTXO index with the unstable blocks on top of it
// and drives the ingestion of blocks that become final.
package state

import (
	"errors"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/blocktree"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/budget"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/storage"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/unstable"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/utxoset"
)

// ErrAnchorMismatch is returned when the anchor does not follow the recorded stable tip.
var ErrAnchorMismatch = errors.New("anchor does not extend the stable tip")

// Finalized is a block that was fully ingested into the stable index.
type Finalized struct {
	Block     *wire.MsgBlock
	Height    uint32
	Discarded []*wire.MsgBlock
}

// Config configures a State.
type Config struct {
	Store              storage.Store
	Resolver           utxoset.AddressResolver
	StabilityThreshold uint32
	SliceThreshold     uint64
	DuplicateTxIDs     []chainhash.Hash
	// Anchor is the first block not yet in the stable index.
	Anchor       *wire.MsgBlock
	AnchorHeight uint32
	// OnFinalized is called once for every block after its ingestion completes.
	OnFinalized func(Finalized)
}

// State is the UTXO index: stable entries, unstable blocks and the block being ingested.
type State struct {
	store       storage.Store
	utxos       *utxoset.UtxoSet
	unstable    *unstable.UnstableBlocks
	inflight    *inflight
	tip         Tip
	hasTip      bool
	onFinalized func(Finalized)
}

// New opens the index in cfg.Store. When the store already holds a stable tip,
// the anchor must be the block right after it.
func New(cfg Config) (*State, error) {
	if cfg.Store == nil {
		return nil, errors.New("state store is required")
	}
	if cfg.Anchor == nil {
		return nil, errors.New("state anchor is required")
	}

	tip, hasTip, err := recoverMeta(cfg.Store)
	if err != nil {
		return nil, err
	}
	if hasTip && (cfg.AnchorHeight != tip.Height+1 || cfg.Anchor.Header.PrevBlock != tip.Hash) {
		return nil, fmt.Errorf("anchor %s at height %d, stable tip %s at height %d: %w",
			cfg.Anchor.BlockHash(), cfg.AnchorHeight, tip.Hash, tip.Height, ErrAnchorMismatch)
	}

	utxos, err := utxoset.New(utxoset.Config{
		Store:          cfg.Store,
		Resolver:       cfg.Resolver,
		SliceThreshold: cfg.SliceThreshold,
		DuplicateTxIDs: cfg.DuplicateTxIDs,
	})
	if err != nil {
		return nil, err
	}
	blocks, err := unstable.New(utxos, cfg.StabilityThreshold, cfg.Anchor, cfg.AnchorHeight)
	if err != nil {
		return nil, err
	}

	return &State{
		store:       cfg.Store,
		utxos:       utxos,
		unstable:    blocks,
		tip:         tip,
		hasTip:      hasTip,
		onFinalized: cfg.OnFinalized,
	}, nil
}

func (s *State) view() pendingView {
	return pendingView{utxos: s.utxos, inflight: s.inflight}
}

// InsertBlock adds block to the unstable blocks.
func (s *State) InsertBlock(block *wire.MsgBlock) error {
	return s.unstable.Push(s.view(), block)
}

// IngestStableBlocks resumes the block being ingested, then pops and ingests stable
// blocks one at a time. It returns true once no block is stable anymore and false
// when meter paused the ingestion.
//
// An error leaves the stable index partially updated and the process must not
// continue with this State.
func (s *State) IngestStableBlocks(meter budget.Meter) (bool, error) {
	for {
		if s.inflight == nil {
			popped, ok := s.unstable.Pop()
			if !ok {
				return true, nil
			}
			s.inflight = newInflight(popped)
			if err := beginIngestion(s.store, s.inflight.tip()); err != nil {
				return false, err
			}
		}

		done, err := s.ingestInflight(meter)
		if err != nil {
			return false, err
		}
		if !done {
			return false, nil
		}

		finished := s.inflight
		tip := finished.tip()
		if err = commitIngestion(s.store, tip); err != nil {
			return false, err
		}
		s.inflight = nil
		s.tip, s.hasTip = tip, true
		if s.onFinalized != nil {
			s.onFinalized(Finalized{
				Block:     finished.popped.Block,
				Height:    finished.popped.Height,
				Discarded: finished.popped.Discarded,
			})
		}
	}
}

func (s *State) ingestInflight(meter budget.Meter) (bool, error) {
	f := s.inflight
	txs := f.popped.Block.Transactions
	for f.txIndex < len(txs) {
		res, err := s.utxos.IngestTx(meter, txs[f.txIndex], f.popped.Height, f.input, f.output)
		if err != nil {
			return false, fmt.Errorf("ingest tx %d of block %s: %w", f.txIndex, f.popped.Block.BlockHash(), err)
		}
		if res.Paused {
			f.input, f.output = res.Input, res.Output
			return false, nil
		}
		f.txIndex++
		f.input, f.output = 0, 0
	}
	return true, nil
}

// Ingesting reports whether a block is partially ingested.
func (s *State) Ingesting() bool {
	return s.inflight != nil
}

// StableTip returns the last fully ingested block.
func (s *State) StableTip() (Tip, bool) {
	return s.tip, s.hasTip
}

// MainChain returns the unstable main chain starting at the anchor.
func (s *State) MainChain() blocktree.BlockChain {
	return s.unstable.MainChain()
}

// Blocks returns every unstable block.
func (s *State) Blocks() []*wire.MsgBlock {
	return s.unstable.Blocks()
}

// ChainWithTip returns the unstable chain from the anchor to tip.
func (s *State) ChainWithTip(tip chainhash.Hash) (blocktree.BlockChain, bool) {
	return s.unstable.ChainWithTip(tip)
}

// Contains reports whether hash is an unstable block.
func (s *State) Contains(hash chainhash.Hash) bool {
	return s.unstable.Contains(hash)
}

// AnchorHeight returns the height of the anchor.
func (s *State) AnchorHeight() uint32 {
	return s.unstable.AnchorHeight()
}

// TipHeight returns the height of the deepest unstable block.
func (s *State) TipHeight() uint32 {
	return s.unstable.TipHeight()
}

// UnstableLen returns the number of unstable blocks.
func (s *State) UnstableLen() int {
	return s.unstable.Len()
}

// CachedOutputs returns the number of outputs created by unstable blocks.
func (s *State) CachedOutputs() int {
	return s.unstable.CachedOutputs()
}

// TxOut returns the output at op as seen from the tip of the unstable main chain.
// Outputs spent by a main chain block are absent. Spends on other branches are ignored.
func (s *State) TxOut(op wire.OutPoint) (utxoset.Entry, bool, error) {
	if out, height, ok := s.unstable.TxOut(op); ok {
		return utxoset.Entry{TxOut: out, Height: height}, true, nil
	}
	if s.unstable.Spent(op) {
		return utxoset.Entry{}, false, nil
	}
	return s.view().TxOut(op)
}

// GetUtxos returns the outputs owned by address in descending height order.
// The stable outputs are overlaid with the block being ingested and the unstable main chain.
func (s *State) GetUtxos(address string) ([]model.Utxo, error) {
	stable, err := s.utxos.UtxosByAddress(address, 0)
	if err != nil {
		return nil, err
	}
	known := make(map[wire.OutPoint]struct{}, len(stable))
	for _, u := range stable {
		known[u.OutPoint] = struct{}{}
	}

	type heightBlock struct {
		block  *wire.MsgBlock
		height uint32
	}
	var blocks []heightBlock
	if s.inflight != nil {
		blocks = append(blocks, heightBlock{block: s.inflight.popped.Block, height: s.inflight.popped.Height})
	}
	anchorHeight := s.unstable.AnchorHeight()
	for i, block := range s.unstable.MainChain() {
		blocks = append(blocks, heightBlock{block: block, height: anchorHeight + uint32(i)})
	}

	spent := make(map[wire.OutPoint]struct{})
	var added []model.Utxo
	for _, hb := range blocks {
		for _, tx := range hb.block.Transactions {
			if !blockchain.IsCoinBaseTx(tx) {
				for _, in := range tx.TxIn {
					spent[in.PreviousOutPoint] = struct{}{}
				}
			}
			txid := tx.TxHash()
			for i, out := range tx.TxOut {
				if utxoset.IsProvablyUnspendable(out.PkScript) {
					continue
				}
				if owner, ok := s.utxos.Resolve(out.PkScript); !ok || owner != address {
					continue
				}
				op := wire.OutPoint{Hash: txid, Index: uint32(i)}
				if _, ok := known[op]; ok {
					continue
				}
				added = append(added, model.Utxo{OutPoint: op, Value: out.Value, Height: hb.height})
			}
		}
	}

	result := make([]model.Utxo, 0, len(stable)+len(added))
	for _, u := range append(added, stable...) {
		if _, ok := spent[u.OutPoint]; !ok {
			result = append(result, u)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Height > result[j].Height
	})
	return result, nil
}

// GetBalance returns the total value of the outputs owned by address.
func (s *State) GetBalance(address string) (int64, error) {
	utxos, err := s.GetUtxos(address)
	if err != nil {
		return 0, err
	}
	var balance int64
	for _, u := range utxos {
		balance += u.Value
	}
	return balance, nil
}
