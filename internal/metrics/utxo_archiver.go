package metrics

import (
	"time"

	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	archiverFlushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "utxo_archiver",
		Name:      "flush_total",
		Help:      "Count of finalized block batches written to the archive.",
	}, []string{"coin", "network", "status"})

	archiverFlushDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blockinsight7000",
		Subsystem: "utxo_archiver",
		Name:      "flush_duration_seconds",
		Help:      "Duration of writing a finalized block batch.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"coin", "network", "status"})

	archiverFlushSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blockinsight7000",
		Subsystem: "utxo_archiver",
		Name:      "flush_size",
		Help:      "Number of blocks per archive batch.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"coin", "network"})
)

// UtxoArchiver tracks metrics for archiving finalized blocks.
type UtxoArchiver struct {
	coin    model.Coin
	network model.Network
}

// NewUtxoArchiver constructs a UtxoArchiver collector.
func NewUtxoArchiver(coin model.Coin, network model.Network) *UtxoArchiver {
	return &UtxoArchiver{coin: orUnknown(coin), network: orUnknown(network)}
}

// ObserveFlush records a batch write.
func (m UtxoArchiver) ObserveFlush(err error, blocks int, started time.Time) {
	status := statusOf(err)
	archiverFlushTotal.WithLabelValues(string(m.coin), string(m.network), status).Inc()
	archiverFlushDuration.WithLabelValues(string(m.coin), string(m.network), status).
		Observe(time.Since(started).Seconds())
	archiverFlushSize.WithLabelValues(string(m.coin), string(m.network)).Observe(float64(blocks))
}
