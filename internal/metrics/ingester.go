package metrics

import (
	"time"

	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingesterProcessBatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "ingester",
		Name:      "process_batch_total",
		Help:      "Count of processed batches (block files or height ranges).",
	}, []string{"coin", "network", "mode", "status"})

	ingesterProcessBatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blockinsight7000",
		Subsystem: "ingester",
		Name:      "process_batch_duration_seconds",
		Help:      "Duration of processing a batch.",
		Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"coin", "network", "mode", "status"})

	ingesterProcessBatchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blockinsight7000",
		Subsystem: "ingester",
		Name:      "process_batch_size",
		Help:      "Number of blocks processed per batch.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1..2048
	}, []string{"coin", "network", "mode"})

	ingesterProcessBlockTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "ingester",
		Name:      "process_block_total",
		Help:      "Count of decoded and queued blocks.",
	}, []string{"coin", "network", "mode", "status"})

	ingesterProcessBlockDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blockinsight7000",
		Subsystem: "ingester",
		Name:      "process_block_duration_seconds",
		Help:      "Duration of fetching, decoding and converting a single block.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"coin", "network", "mode", "status"})

	ingesterFlushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "ingester",
		Name:      "flush_total",
		Help:      "Count of block batches written to storage.",
	}, []string{"coin", "network", "status"})

	ingesterFlushDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blockinsight7000",
		Subsystem: "ingester",
		Name:      "flush_duration_seconds",
		Help:      "Duration of writing a block batch to storage.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"coin", "network", "status"})

	ingesterTipHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "blockinsight7000",
		Subsystem: "ingester",
		Name:      "tip_height",
		Help:      "Latest block height reported by the node.",
	}, []string{"coin", "network"})
)

// Ingester tracks metrics of block ingestion.
type Ingester struct {
	coin    model.Coin
	network model.Network
}

// NewIngester constructs an ingestion metrics collector.
func NewIngester(coin model.Coin, network model.Network) *Ingester {
	if coin == "" {
		coin = "unknown"
	}
	if network == "" {
		network = "unknown"
	}
	return &Ingester{coin: coin, network: network}
}

func (m Ingester) ObserveProcessBatch(mode string, err error, blocks int, started time.Time) {
	status := statusOf(err)
	ingesterProcessBatchTotal.WithLabelValues(string(m.coin), string(m.network), mode, status).Inc()
	ingesterProcessBatchDuration.WithLabelValues(string(m.coin), string(m.network), mode, status).
		Observe(time.Since(started).Seconds())
	ingesterProcessBatchSize.WithLabelValues(string(m.coin), string(m.network), mode).Observe(float64(blocks))
}

func (m Ingester) ObserveProcessBlock(mode string, err error, started time.Time) {
	status := statusOf(err)
	ingesterProcessBlockTotal.WithLabelValues(string(m.coin), string(m.network), mode, status).Inc()
	ingesterProcessBlockDuration.WithLabelValues(string(m.coin), string(m.network), mode, status).
		Observe(time.Since(started).Seconds())
}

func (m Ingester) ObserveFlush(err error, started time.Time) {
	status := statusOf(err)
	ingesterFlushTotal.WithLabelValues(string(m.coin), string(m.network), status).Inc()
	ingesterFlushDuration.WithLabelValues(string(m.coin), string(m.network), status).
		Observe(time.Since(started).Seconds())
}

func (m Ingester) ObserveTip(height uint64) {
	ingesterTipHeight.WithLabelValues(string(m.coin), string(m.network)).Set(float64(height))
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
