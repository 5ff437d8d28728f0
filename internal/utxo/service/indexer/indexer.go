// Package indexer keeps the UTXO index in sync with a Bitcoin node and serves
// read-only queries between indexing steps.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/clock"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/blocktree"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/budget"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/state"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/unstable"
	"go.uber.org/zap"
)

// ErrIngestionFailed wraps errors that leave the stable index partially updated.
// The indexer stops and must be restarted against a rebuilt store.
var ErrIngestionFailed = errors.New("stable block ingestion failed")

// Options tunes the indexing loop. Zero values select defaults.
type Options struct {
	FetchWindow   uint32
	MaxReorgDepth int
	PollInterval  time.Duration
	RetryInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.FetchWindow == 0 {
		o.FetchWindow = defaultFetchWindow
	}
	if o.MaxReorgDepth <= 0 {
		o.MaxReorgDepth = defaultMaxReorgDepth
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = defaultRetryInterval
	}
	return o
}

// Indexer is the single writer of the UTXO index.
type Indexer struct {
	logger      *zap.Logger
	metrics     Metrics
	source      BlockSource
	archiver    Archiver
	sleep       func(context.Context, time.Duration) error
	opts        Options
	blockSignal <-chan struct{}
	meter       Meter

	mu        sync.RWMutex
	state     *state.State
	finalized []state.Finalized
}

// New opens the index described by cfg. The archiver and block signal are optional.
func New(
	cfg state.Config,
	source BlockSource,
	archiver Archiver,
	metrics Metrics,
	opts Options,
	logger *zap.Logger,
	blockSignal <-chan struct{},
) (*Indexer, error) {
	if source == nil {
		return nil, errors.New("indexer block source is required")
	}
	if metrics == nil {
		return nil, errors.New("indexer metrics is required")
	}

	ix := &Indexer{
		logger:      logger,
		metrics:     metrics,
		source:      source,
		archiver:    archiver,
		sleep:       clock.SleepWithContext,
		opts:        opts.withDefaults(),
		blockSignal: blockSignal,
		meter:       budget.NewElapsed(),
	}
	cfg.OnFinalized = ix.collect

	st, err := state.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("open utxo state: %w", err)
	}
	ix.state = st
	ix.report()
	return ix, nil
}

// collect runs under the write lock, inside IngestStableBlocks.
func (ix *Indexer) collect(f state.Finalized) {
	ix.finalized = append(ix.finalized, f)
}

// Run indexes until ctx is canceled, then finishes the block being ingested.
func (ix *Indexer) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		err := ix.run(ctx)
		if errors.Is(err, ErrIngestionFailed) {
			return err
		}
		if err != nil && ctx.Err() == nil {
			ix.logger.Warn("run iteration failed, backing off", zap.Error(err), zap.Duration("sleep", ix.opts.RetryInterval))
			_ = ix.sleep(ctx, ix.opts.RetryInterval)
		}
	}

	if err := ix.finishInflight(); err != nil {
		return errors.Join(ctx.Err(), err)
	}
	return ctx.Err()
}

func (ix *Indexer) run(ctx context.Context) error {
	started := time.Now()
	pushed, err := ix.sync(ctx)
	ix.metrics.ObserveSync(err, pushed, started)
	if err != nil {
		ix.logger.Error("sync with node failed", zap.Error(err), zap.Int("pushed", pushed))
		return err
	}

	if err = ix.ingest(ctx); err != nil {
		return err
	}
	ix.report()

	if pushed > 0 {
		return nil
	}
	return ix.wait(ctx, ix.opts.PollInterval)
}

// sync pushes the node's blocks above the unstable tip, at most FetchWindow per call.
func (ix *Indexer) sync(ctx context.Context) (int, error) {
	nodeTip, err := ix.source.TipHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("read node tip: %w", err)
	}

	ix.mu.RLock()
	next := ix.state.TipHeight() + 1
	anchorHeight := ix.state.AnchorHeight()
	ix.mu.RUnlock()

	if nodeTip < next {
		return ix.syncTip(ctx, nodeTip, anchorHeight)
	}

	to := nodeTip
	if nodeTip-next >= ix.opts.FetchWindow {
		to = next + ix.opts.FetchWindow - 1
	}
	blocks, err := ix.source.BlocksInRange(ctx, next, to)
	if err != nil {
		return 0, fmt.Errorf("fetch blocks %d..%d: %w", next, to, err)
	}

	pushed := 0
	for i, block := range blocks {
		n, err := ix.push(ctx, block, next+uint32(i), anchorHeight)
		pushed += n
		if err != nil {
			return pushed, err
		}
	}
	if pushed > 0 {
		ix.logger.Debug("pushed blocks", zap.Int("count", pushed), zap.Uint32("from", next), zap.Uint32("to", to))
	}
	return pushed, nil
}

// syncTip handles a node whose best chain is not longer than the unstable tip:
// its best block may still be on a fork the index has not seen.
func (ix *Indexer) syncTip(ctx context.Context, nodeTip, anchorHeight uint32) (int, error) {
	if nodeTip <= anchorHeight {
		return 0, nil
	}
	hash, err := ix.source.BlockHash(ctx, nodeTip)
	if err != nil {
		return 0, err
	}

	ix.mu.RLock()
	known := ix.state.Contains(hash)
	ix.mu.RUnlock()
	if known {
		return 0, nil
	}

	block, err := ix.source.Block(ctx, hash)
	if err != nil {
		return 0, err
	}
	return ix.push(ctx, block, nodeTip, anchorHeight)
}

// push inserts block at height, first fetching and inserting the unknown
// ancestors of a block on a fork the index has not seen yet.
func (ix *Indexer) push(ctx context.Context, block *wire.MsgBlock, height, anchorHeight uint32) (int, error) {
	chain := []*wire.MsgBlock{block}
	for {
		head := chain[len(chain)-1]
		headHeight := height - uint32(len(chain)-1)

		ix.mu.RLock()
		known := ix.state.Contains(head.Header.PrevBlock)
		ix.mu.RUnlock()
		if known {
			break
		}
		if headHeight <= anchorHeight+1 || len(chain) > ix.opts.MaxReorgDepth {
			ix.metrics.ObserveRejected("orphan")
			return 0, fmt.Errorf("block %s at height %d: %w", head.BlockHash(), headHeight, blocktree.ErrDoesNotExtendTree)
		}

		parent, err := ix.source.Block(ctx, head.Header.PrevBlock)
		if err != nil {
			return 0, fmt.Errorf("fetch ancestor of %s: %w", head.BlockHash(), err)
		}
		chain = append(chain, parent)
	}
	if len(chain) > 1 {
		ix.logger.Info("switching to fork", zap.Int("new_blocks", len(chain)), zap.Uint32("tip_height", height))
	}

	pushed := 0
	for i := len(chain) - 1; i >= 0; i-- {
		ix.mu.Lock()
		err := ix.state.InsertBlock(chain[i])
		ix.mu.Unlock()

		switch {
		case err == nil:
			pushed++
		case errors.Is(err, blocktree.ErrBlockAlreadyExists):
			ix.metrics.ObserveRejected("duplicate")
		default:
			ix.metrics.ObserveRejected(rejectReason(err))
			return pushed, fmt.Errorf("push block %s: %w", chain[i].BlockHash(), err)
		}
	}
	return pushed, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, blocktree.ErrDoesNotExtendTree):
		return "orphan"
	case errors.Is(err, unstable.ErrUnresolvedInput):
		return "unresolved_input"
	case errors.Is(err, unstable.ErrBlockAlreadyCached):
		return "duplicate"
	default:
		return "invalid"
	}
}

// ingest runs ingestion slices until no block is stable or ctx is canceled.
// The write lock is released between slices so queries can proceed.
func (ix *Indexer) ingest(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := ix.slice(ix.meter)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (ix *Indexer) slice(meter Meter) (bool, error) {
	started := time.Now()

	ix.mu.Lock()
	meter.Reset()
	done, err := ix.state.IngestStableBlocks(meter)
	finalized := ix.finalized
	ix.finalized = nil
	ix.mu.Unlock()

	ix.metrics.ObserveSlice(err, done, started)
	ix.publish(finalized)
	if err != nil {
		ix.logger.Error("ingestion failed, stopping", zap.Error(err))
		return false, fmt.Errorf("%w: %w", ErrIngestionFailed, err)
	}
	return done, nil
}

// publish hands finalized blocks to the archiver. Archive errors are logged
// only: the stable index is already committed.
func (ix *Indexer) publish(finalized []state.Finalized) {
	ctx := context.Background()
	for _, f := range finalized {
		ix.metrics.ObserveFinalized(f.Height, len(f.Discarded))
		ix.logger.Info("block finalized",
			zap.Uint32("height", f.Height),
			zap.Stringer("hash", f.Block.BlockHash()),
			zap.Int("discarded", len(f.Discarded)),
		)
		if ix.archiver == nil {
			continue
		}
		if err := ix.archiver.Archive(ctx, f.Block, f.Height); err != nil {
			ix.logger.Error("archive finalized block", zap.Uint32("height", f.Height), zap.Error(err))
		}
	}
}

// finishInflight completes a paused ingestion without a budget so the store is
// left consistent on exit.
func (ix *Indexer) finishInflight() error {
	ix.mu.RLock()
	ingesting := ix.state.Ingesting()
	ix.mu.RUnlock()
	if !ingesting {
		return nil
	}

	ix.logger.Info("finishing in-flight block before exit")
	_, err := ix.slice(unlimited{})
	return err
}

type unlimited struct {
	budget.Unlimited
}

func (unlimited) Reset() {}

func (ix *Indexer) report() {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ix.metrics.SetUnstable(ix.state.UnstableLen(), ix.state.CachedOutputs(), ix.state.TipHeight())
}

func (ix *Indexer) wait(ctx context.Context, d time.Duration) error {
	if ix.blockSignal == nil {
		return ix.sleep(ctx, d)
	}

	_, err := clock.WaitSignal(ctx, d, ix.blockSignal)
	return err
}
