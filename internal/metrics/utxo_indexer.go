package metrics

import (
	"time"

	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	indexerSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "utxo_indexer",
		Name:      "sync_total",
		Help:      "Count of attempts to pull new blocks from the node.",
	}, []string{"coin", "network", "status"})

	indexerSyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blockinsight7000",
		Subsystem: "utxo_indexer",
		Name:      "sync_duration_seconds",
		Help:      "Duration of pulling new blocks from the node.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"coin", "network", "status"})

	indexerPushedBlocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "utxo_indexer",
		Name:      "pushed_blocks_total",
		Help:      "Count of blocks added to the unstable blocks.",
	}, []string{"coin", "network"})

	indexerRejectedBlocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "utxo_indexer",
		Name:      "rejected_blocks_total",
		Help:      "Count of blocks that could not be added to the unstable blocks.",
	}, []string{"coin", "network", "reason"})

	indexerSliceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "utxo_indexer",
		Name:      "ingest_slices_total",
		Help:      "Count of ingestion slices by outcome.",
	}, []string{"coin", "network", "outcome"})

	indexerSliceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blockinsight7000",
		Subsystem: "utxo_indexer",
		Name:      "ingest_slice_duration_seconds",
		Help:      "Duration of a single ingestion slice.",
		Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"coin", "network", "outcome"})

	indexerFinalizedBlocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "utxo_indexer",
		Name:      "finalized_blocks_total",
		Help:      "Count of blocks fully ingested into the stable index.",
	}, []string{"coin", "network"})

	indexerDiscardedBlocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "utxo_indexer",
		Name:      "discarded_blocks_total",
		Help:      "Count of unstable blocks dropped because a sibling became stable.",
	}, []string{"coin", "network"})

	indexerStableHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "blockinsight7000",
		Subsystem: "utxo_indexer",
		Name:      "stable_height",
		Help:      "Height of the last block ingested into the stable index.",
	}, []string{"coin", "network"})

	indexerUnstableBlocks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "blockinsight7000",
		Subsystem: "utxo_indexer",
		Name:      "unstable_blocks",
		Help:      "Number of unstable blocks, the anchor included.",
	}, []string{"coin", "network"})

	indexerCachedOutputs = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "blockinsight7000",
		Subsystem: "utxo_indexer",
		Name:      "cached_outputs",
		Help:      "Number of outputs created by unstable blocks.",
	}, []string{"coin", "network"})

	indexerTipHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "blockinsight7000",
		Subsystem: "utxo_indexer",
		Name:      "tip_height",
		Help:      "Height of the deepest unstable block.",
	}, []string{"coin", "network"})
)

// UtxoIndexer tracks metrics for the UTXO indexer loop.
type UtxoIndexer struct {
	coin    model.Coin
	network model.Network
}

// NewUtxoIndexer constructs a UtxoIndexer collector.
func NewUtxoIndexer(coin model.Coin, network model.Network) *UtxoIndexer {
	return &UtxoIndexer{coin: orUnknown(coin), network: orUnknown(network)}
}

// ObserveSync records a sync attempt and the number of blocks it pushed.
func (m UtxoIndexer) ObserveSync(err error, pushed int, started time.Time) {
	status := statusOf(err)
	indexerSyncTotal.WithLabelValues(string(m.coin), string(m.network), status).Inc()
	indexerSyncDuration.WithLabelValues(string(m.coin), string(m.network), status).
		Observe(time.Since(started).Seconds())
	indexerPushedBlocks.WithLabelValues(string(m.coin), string(m.network)).Add(float64(pushed))
}

// ObserveRejected records a block that was not pushed.
func (m UtxoIndexer) ObserveRejected(reason string) {
	indexerRejectedBlocks.WithLabelValues(string(m.coin), string(m.network), reason).Inc()
}

// ObserveSlice records one ingestion slice.
func (m UtxoIndexer) ObserveSlice(err error, done bool, started time.Time) {
	outcome := "paused"
	switch {
	case err != nil:
		outcome = "error"
	case done:
		outcome = "done"
	}
	indexerSliceTotal.WithLabelValues(string(m.coin), string(m.network), outcome).Inc()
	indexerSliceDuration.WithLabelValues(string(m.coin), string(m.network), outcome).
		Observe(time.Since(started).Seconds())
}

// ObserveFinalized records a block that became part of the stable index.
func (m UtxoIndexer) ObserveFinalized(height uint32, discarded int) {
	indexerFinalizedBlocks.WithLabelValues(string(m.coin), string(m.network)).Inc()
	indexerDiscardedBlocks.WithLabelValues(string(m.coin), string(m.network)).Add(float64(discarded))
	indexerStableHeight.WithLabelValues(string(m.coin), string(m.network)).Set(float64(height))
}

// SetUnstable records the current size of the unstable blocks.
func (m UtxoIndexer) SetUnstable(blocks, cachedOutputs int, tipHeight uint32) {
	indexerUnstableBlocks.WithLabelValues(string(m.coin), string(m.network)).Set(float64(blocks))
	indexerCachedOutputs.WithLabelValues(string(m.coin), string(m.network)).Set(float64(cachedOutputs))
	indexerTipHeight.WithLabelValues(string(m.coin), string(m.network)).Set(float64(tipHeight))
}
