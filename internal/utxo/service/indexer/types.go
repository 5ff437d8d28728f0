package indexer

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	BlockSource interface {
		TipHeight(ctx context.Context) (uint32, error)
		BlockHash(ctx context.Context, height uint32) (chainhash.Hash, error)
		Block(ctx context.Context, hash chainhash.Hash) (*wire.MsgBlock, error)
		BlocksInRange(ctx context.Context, from, to uint32) ([]*wire.MsgBlock, error)
	}
	Archiver interface {
		Archive(ctx context.Context, block *wire.MsgBlock, height uint32) error
	}
	Metrics interface {
		ObserveSync(err error, pushed int, started time.Time)
		ObserveRejected(reason string)
		ObserveSlice(err error, done bool, started time.Time)
		ObserveFinalized(height uint32, discarded int)
		SetUnstable(blocks, cachedOutputs int, tipHeight uint32)
	}
	// Meter is a budget meter restarted before every ingestion slice.
	Meter interface {
		Consumed() uint64
		Reset()
	}
)
