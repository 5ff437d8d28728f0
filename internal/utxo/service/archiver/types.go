package archiver

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	ClickhouseRepository interface {
		MaxBlockHeight(ctx context.Context, coin model.Coin, network model.Network) (uint64, bool, error)
		InsertBlocks(ctx context.Context, blocks []model.Block) error
		InsertTransactionOutputs(ctx context.Context, outputs []model.TransactionOutput) error
	}
	Converter interface {
		Convert(block *wire.MsgBlock, height uint32) (model.FinalizedBlock, error)
	}
	BlockBatcher interface {
		Start(ctx context.Context)
		Stop()
		Add(ctx context.Context, item model.FinalizedBlock) error
	}
	Metrics interface {
		ObserveFlush(err error, blocks int, started time.Time)
	}
)
