package metrics

import (
	"errors"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/decoder"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decoderRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "decoder",
		Name:      "records_total",
		Help:      "Count of decoded records by type.",
	}, []string{"source", "type"})

	decoderTransactionBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "decoder",
		Name:      "transaction_bytes_total",
		Help:      "Serialized bytes of decoded transactions, witness data included.",
	}, []string{"source"})

	decoderTransactionWeight = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blockinsight7000",
		Subsystem: "decoder",
		Name:      "transaction_weight",
		Help:      "Weight of decoded transactions in weight units.",
		Buckets:   prometheus.ExponentialBuckets(256, 2, 12), // 256..524288
	}, []string{"source", "witness"})

	decoderSequencesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "decoder",
		Name:      "sequences_total",
		Help:      "Count of finished record sequences.",
	}, []string{"source", "status"})

	decoderSequenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blockinsight7000",
		Subsystem: "decoder",
		Name:      "sequence_duration_seconds",
		Help:      "Duration of decoding a whole record sequence.",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .25, .5, 1, 2.5},
	}, []string{"source", "status"})
)

// Decoder tracks metrics of record sequences. It implements decoder.Observer.
type Decoder struct {
	source string
}

// NewDecoder constructs a collector labelled with the origin of the decoded
// bytes, for example "blockfile" or "rpc".
func NewDecoder(source string) *Decoder {
	if source == "" {
		source = "unknown"
	}
	return &Decoder{source: source}
}

func (m Decoder) ObserveRecord(r decoder.Record) {
	decoderRecordsTotal.WithLabelValues(m.source, string(r.Type())).Inc()

	tx, ok := r.(*decoder.Transaction)
	if !ok {
		return
	}
	witness := "false"
	if tx.HasWitness {
		witness = "true"
	}
	decoderTransactionBytesTotal.WithLabelValues(m.source).Add(float64(tx.Size))
	decoderTransactionWeight.WithLabelValues(m.source, witness).Observe(float64(tx.Weight))
}

// ObserveSequence records how a sequence ended. A consumer stopping early is
// a success.
func (m Decoder) ObserveSequence(_ int, err error, started time.Time) {
	status := "success"
	switch {
	case errors.Is(err, decoder.ErrShortRead):
		status = "short_read"
	case err != nil:
		status = "error"
	}
	decoderSequencesTotal.WithLabelValues(m.source, status).Inc()
	decoderSequenceDuration.WithLabelValues(m.source, status).Observe(time.Since(started).Seconds())
}

var _ decoder.Observer = Decoder{}
