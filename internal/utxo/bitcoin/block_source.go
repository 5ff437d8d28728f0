// Package bitcoin implements Bitcoin-specific chain access: node RPC, block
// notifications, script decoding and archive conversion.
package bitcoin

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/pkg/safe"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/pkg/workerpool"
)

// BlockSource reads raw blocks from a Bitcoin node.
type BlockSource struct {
	rpc         RPCClient
	workerCount int
}

// NewBlockSource creates a BlockSource fetching up to workerCount blocks concurrently.
func NewBlockSource(rpc RPCClient, workerCount int) *BlockSource {
	return &BlockSource{rpc: rpc, workerCount: workerCount}
}

// TipHeight returns the height of the node's best block.
func (s *BlockSource) TipHeight(_ context.Context) (uint32, error) {
	count, err := s.rpc.GetBlockCount()
	if err != nil {
		return 0, err
	}
	height, err := safe.Uint32(count)
	if err != nil {
		return 0, fmt.Errorf("block count overflow: %w", err)
	}
	return height, nil
}

// BlockHash returns the hash of the node's best-chain block at height.
func (s *BlockSource) BlockHash(ctx context.Context, height uint32) (chainhash.Hash, error) {
	if err := ctx.Err(); err != nil {
		return chainhash.Hash{}, err
	}
	hash, err := s.rpc.GetBlockHash(int64(height))
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("get block hash at height %d: %w", height, err)
	}
	return *hash, nil
}

// Block fetches the block with the given hash.
func (s *BlockSource) Block(ctx context.Context, hash chainhash.Hash) (*wire.MsgBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	block, err := s.rpc.GetBlock(&hash)
	if err != nil {
		return nil, fmt.Errorf("get block %s: %w", hash, err)
	}
	if got := block.BlockHash(); got != hash {
		return nil, fmt.Errorf("get block %s: node returned %s", hash, got)
	}
	return block, nil
}

// BlocksInRange fetches the best-chain blocks from..to (inclusive), in height order.
func (s *BlockSource) BlocksInRange(ctx context.Context, from, to uint32) ([]*wire.MsgBlock, error) {
	if from > to {
		return nil, nil
	}
	heights := make([]uint32, 0, to-from+1)
	for h := from; ; h++ {
		heights = append(heights, h)
		if h == to {
			break
		}
	}

	return workerpool.Map(ctx, s.workerCount, heights, func(ctx context.Context, height uint32) (*wire.MsgBlock, error) {
		hash, err := s.BlockHash(ctx, height)
		if err != nil {
			return nil, err
		}
		return s.Block(ctx, hash)
	})
}
