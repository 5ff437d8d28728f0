// Package archiver copies finalized blocks and their outputs to ClickHouse.
package archiver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/pkg/batcher"
	"go.uber.org/zap"
)

const (
	flushSize     = 100
	flushInterval = 5 * time.Second
	flushRPS      = 10
)

// Archiver batches finalized blocks and writes them to the archive.
// Heights already archived by a previous run are skipped.
type Archiver struct {
	logger    *zap.Logger
	coin      model.Coin
	network   model.Network
	repo      ClickhouseRepository
	converter Converter
	metrics   Metrics
	batcher   BlockBatcher

	archivedHeight uint64
	hasArchived    bool
}

// New builds an Archiver for one coin and network.
func New(
	repo ClickhouseRepository,
	converter Converter,
	metrics Metrics,
	coin model.Coin,
	network model.Network,
	logger *zap.Logger,
) (*Archiver, error) {
	if repo == nil {
		return nil, errors.New("archiver repository is required")
	}
	if converter == nil {
		return nil, errors.New("archiver converter is required")
	}
	if metrics == nil {
		return nil, errors.New("archiver metrics is required")
	}
	logger = logger.With(
		zap.String("coin", string(coin)),
		zap.String("network", string(network)),
	)

	a := &Archiver{
		logger:    logger,
		coin:      coin,
		network:   network,
		repo:      repo,
		converter: converter,
		metrics:   metrics,
	}
	a.batcher = batcher.New[model.FinalizedBlock](logger.Named("batcher"), a.flush, flushSize, flushInterval, flushRPS)
	return a, nil
}

// Start reads the archived height and starts the background writer.
// The writer outlives ctx and keeps accepting blocks until Stop.
func (a *Archiver) Start(ctx context.Context) error {
	height, found, err := a.repo.MaxBlockHeight(ctx, a.coin, a.network)
	if err != nil {
		return fmt.Errorf("read archived height: %w", err)
	}
	a.archivedHeight, a.hasArchived = height, found
	if found {
		a.logger.Info("resuming archive", zap.Uint64("archived_height", height))
	}
	a.batcher.Start(context.WithoutCancel(ctx))
	return nil
}

// Stop writes the queued blocks and stops the background writer.
func (a *Archiver) Stop() {
	a.batcher.Stop()
}

// Archive queues block at height for writing.
func (a *Archiver) Archive(ctx context.Context, block *wire.MsgBlock, height uint32) error {
	if a.hasArchived && uint64(height) <= a.archivedHeight {
		a.logger.Debug("block already archived", zap.Uint32("height", height))
		return nil
	}
	finalized, err := a.converter.Convert(block, height)
	if err != nil {
		return fmt.Errorf("convert block %d: %w", height, err)
	}
	if err = a.batcher.Add(ctx, finalized); err != nil {
		return fmt.Errorf("queue block %d: %w", height, err)
	}
	return nil
}

// flush writes outputs before blocks so an archived block row implies its outputs are present.
func (a *Archiver) flush(ctx context.Context, items []model.FinalizedBlock) (err error) {
	started := time.Now()
	defer func() {
		a.metrics.ObserveFlush(err, len(items), started)
	}()

	blocks := make([]model.Block, 0, len(items))
	var outputs []model.TransactionOutput
	for _, item := range items {
		blocks = append(blocks, item.Block)
		outputs = append(outputs, item.Outputs...)
	}

	if err = a.repo.InsertTransactionOutputs(ctx, outputs); err != nil {
		return err
	}
	return a.repo.InsertBlocks(ctx, blocks)
}
