package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/clock"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/metrics"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/bitcoin"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/repository/clickhouse"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/service/archiver"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/service/indexer"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/state"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/storage"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/utxoset"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
)

type config struct {
	Network            model.Network `long:"network" env:"UTXO_INDEXER_NETWORK" description:"network name (mainnet, testnet, regtest, signet)" required:"true"`
	RPCURL             string        `long:"rpc-url" env:"UTXO_INDEXER_RPC_URL" description:"Bitcoin RPC URL" default:"http://127.0.0.1:8332"`
	RPCUser            string        `long:"rpc-user" env:"UTXO_INDEXER_RPC_USER" description:"Bitcoin RPC username"`
	RPCPassword        string        `long:"rpc-password" env:"UTXO_INDEXER_RPC_PASSWORD" description:"Bitcoin RPC password"`
	RPCWorkers         int           `long:"rpc-workers" env:"UTXO_INDEXER_RPC_WORKERS" description:"concurrent block downloads" default:"8"`
	ZMQAddr            string        `long:"zmq-addr" env:"UTXO_INDEXER_ZMQ_ADDR" description:"node ZMQ endpoint publishing hashblock"`
	DataDir            string        `long:"data-dir" env:"UTXO_INDEXER_DATA_DIR" description:"LevelDB directory; empty keeps the index in memory, where space freed by spent outputs is never reclaimed"`
	AnchorHeight       uint32        `long:"anchor-height" env:"UTXO_INDEXER_ANCHOR_HEIGHT" description:"height of the first block of a fresh index" default:"0"`
	StabilityThreshold uint32        `long:"stability-threshold" env:"UTXO_INDEXER_STABILITY_THRESHOLD" description:"confirmations before a block is final" default:"6"`
	SliceBudget        time.Duration `long:"slice-budget" env:"UTXO_INDEXER_SLICE_BUDGET" description:"time spent ingesting before yielding to queries" default:"200ms"`
	DuplicateTxIDs     []string      `long:"duplicate-txid" env:"UTXO_INDEXER_DUPLICATE_TXIDS" env-delim:"," description:"txids allowed to overwrite an existing output (defaults to BIP-30 on mainnet)"`
	FetchWindow        uint32        `long:"fetch-window" env:"UTXO_INDEXER_FETCH_WINDOW" description:"blocks fetched per sync" default:"500"`
	MaxReorgDepth      int           `long:"max-reorg-depth" env:"UTXO_INDEXER_MAX_REORG_DEPTH" description:"ancestors fetched to connect a fork" default:"100"`
	PollInterval       time.Duration `long:"poll-interval" env:"UTXO_INDEXER_POLL_INTERVAL" description:"node polling interval without ZMQ signals" default:"10s"`
	ClickhouseDSN      string        `long:"clickhouse-dsn" env:"UTXO_INDEXER_CLICKHOUSE_DSN" description:"ClickHouse DSN; empty disables archiving"`
	GRPCAddr           string        `long:"grpc-addr" env:"UTXO_INDEXER_GRPC_ADDR" description:"gRPC listen address" default:":8000"`
	RestAddr           string        `long:"rest-addr" env:"UTXO_INDEXER_REST_ADDR" description:"REST and metrics listen address" default:":8001"`
}

func main() {
	cfg := config{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	if _, err := flags.ParseArgs(&cfg, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("failed to parse flags", zap.Error(err))
	}

	if err := run(ctx, cfg, logger.With(zap.String("network", string(cfg.Network)))); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("utxo indexer failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	decoder, err := bitcoin.NewScriptDecoder(cfg.Network)
	if err != nil {
		return err
	}
	duplicates, err := duplicateTxIDs(cfg.DuplicateTxIDs, decoder.Params())
	if err != nil {
		return err
	}

	store, err := openStore(cfg.DataDir, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Error("close store", zap.Error(closeErr))
		}
	}()

	rpcClient, err := newRPCClient(cfg.RPCURL, cfg.RPCUser, cfg.RPCPassword)
	if err != nil {
		return fmt.Errorf("init rpc client: %w", err)
	}
	defer func() {
		rpcClient.Shutdown()
		rpcClient.WaitForShutdown()
	}()
	rpc := bitcoin.NewRPCClient(rpcClient, metrics.NewRPCClient(model.BTC, cfg.Network))
	source := bitcoin.NewBlockSource(rpc, cfg.RPCWorkers)

	anchor, anchorHeight, err := loadAnchor(ctx, cfg, store, source, logger)
	if err != nil {
		return err
	}

	var arch indexer.Archiver
	if cfg.ClickhouseDSN != "" {
		repo, err := clickhouse.NewRepository(cfg.ClickhouseDSN, metrics.NewClickhouseRepository())
		if err != nil {
			return fmt.Errorf("init repository: %w", err)
		}
		defer func() {
			if closeErr := repo.Close(); closeErr != nil {
				logger.Error("close clickhouse repository", zap.Error(closeErr))
			}
		}()

		a, err := newArchiver(ctx, cfg, repo, decoder, logger)
		if err != nil {
			return err
		}
		defer a.Stop()
		arch = a
	}

	blockSignal, err := bitcoin.StartBlockSignal(ctx, cfg.ZMQAddr, logger.Named("zmq"))
	if err != nil {
		return err
	}

	ix, err := indexer.New(state.Config{
		Store:              store,
		Resolver:           decoder,
		StabilityThreshold: cfg.StabilityThreshold,
		SliceThreshold:     uint64(cfg.SliceBudget),
		DuplicateTxIDs:     duplicates,
		Anchor:             anchor,
		AnchorHeight:       anchorHeight,
	}, source, arch, metrics.NewUtxoIndexer(model.BTC, cfg.Network), indexer.Options{
		FetchWindow:   cfg.FetchWindow,
		MaxReorgDepth: cfg.MaxReorgDepth,
		PollInterval:  cfg.PollInterval,
	}, logger.Named("indexer"), blockSignal)
	if err != nil {
		return err
	}

	if err = startServers(ctx, cfg, ix, decoder, logger); err != nil {
		return err
	}

	logger.Info("utxo indexer started",
		zap.Uint32("anchor_height", anchorHeight),
		zap.Stringer("anchor", anchor.BlockHash()),
	)
	return ix.Run(ctx)
}

func openStore(dir string, logger *zap.Logger) (storage.Store, error) {
	if dir == "" {
		logger.Warn("no data dir configured, the index is kept in memory")
		return storage.NewMemStore(), nil
	}
	return storage.OpenLevelStore(dir, logger)
}

// duplicateTxIDs returns the configured duplicate transactions, defaulting to the
// BIP-30 pair when the resolved chain is mainnet.
func duplicateTxIDs(ids []string, params *chaincfg.Params) ([]chainhash.Hash, error) {
	if len(ids) == 0 && params.Net == wire.MainNet {
		ids = utxoset.DefaultDuplicateTxIDs
	}
	return utxoset.ParseTxIDs(ids)
}

// loadAnchor fetches the block following the stored stable tip, or the configured
// first block of a fresh index. It waits for the node while the block is unavailable.
func loadAnchor(ctx context.Context, cfg config, store storage.Store, source *bitcoin.BlockSource, logger *zap.Logger) (*wire.MsgBlock, uint32, error) {
	height := cfg.AnchorHeight
	tip, ok, err := state.ReadTip(store)
	if err != nil {
		return nil, 0, err
	}
	if ok {
		height = tip.Height + 1
	}

	for {
		block, err := fetchBlock(ctx, source, height)
		if err == nil {
			return block, height, nil
		}
		logger.Warn("anchor block unavailable, waiting for node",
			zap.Uint32("height", height),
			zap.Duration("retry_in", cfg.PollInterval),
			zap.Error(err),
		)
		if err = clock.SleepWithContext(ctx, cfg.PollInterval); err != nil {
			return nil, 0, err
		}
	}
}

func fetchBlock(ctx context.Context, source *bitcoin.BlockSource, height uint32) (*wire.MsgBlock, error) {
	hash, err := source.BlockHash(ctx, height)
	if err != nil {
		return nil, err
	}
	return source.Block(ctx, hash)
}

func newArchiver(ctx context.Context, cfg config, repo *clickhouse.Repository, decoder *bitcoin.ScriptDecoder, logger *zap.Logger) (*archiver.Archiver, error) {
	a, err := archiver.New(
		repo,
		bitcoin.NewFinalizedBlockConverter(decoder, cfg.Network),
		metrics.NewUtxoArchiver(model.BTC, cfg.Network),
		model.BTC,
		cfg.Network,
		logger.Named("archiver"),
	)
	if err != nil {
		return nil, err
	}
	if err = a.Start(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func newRPCClient(rawURL, user, password string) (*rpcclient.Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse rpc url: %w", err)
	}
	if parsed.Scheme != "http" {
		return nil, fmt.Errorf("rpc url scheme %q not supported, use http", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("rpc url missing host")
	}

	return rpcclient.New(&rpcclient.ConnConfig{
		Host:         parsed.Host,
		User:         user,
		Pass:         password,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
}
