package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the decode stream daemon.
type Metrics struct {
	// Decode pipeline
	AccountsDecoded *prometheus.CounterVec // by account kind
	DecodeFailures  *prometheus.CounterVec // by account kind and error class
	DecodeDuration  *prometheus.HistogramVec

	// Derived prices
	QuotesDerived  *prometheus.CounterVec // by pool family
	SentinelQuotes *prometheus.CounterVec // zero-price results, by pool family

	// Outbound
	StatePublished *prometheus.CounterVec
	PublishDrops   prometheus.Counter

	// Persistence
	PersistBatchDur  prometheus.Histogram
	PersistBatchSize prometheus.Histogram
	PersistRetries   prometheus.Counter

	// Ingest channel backpressure
	ChannelSize     *prometheus.GaugeVec
	ChannelCapacity *prometheus.GaugeVec
}

// NewMetrics registers all daemon metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		AccountsDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "percolator_accounts_decoded_total",
			Help: "Account buffers decoded successfully, by account kind.",
		}, []string{"kind"}),
		DecodeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "percolator_decode_failures_total",
			Help: "Account buffers rejected by the decoder, by kind and error class.",
		}, []string{"kind", "class"}),
		DecodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "percolator_decode_duration_seconds",
			Help:    "Time spent decoding one account buffer.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"kind"}),

		QuotesDerived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "percolator_quotes_derived_total",
			Help: "Pool prices derived, by pool family.",
		}, []string{"family"}),
		SentinelQuotes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "percolator_sentinel_quotes_total",
			Help: "Derived quotes with the zero sentinel price, by pool family.",
		}, []string{"family"}),

		StatePublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "percolator_state_published_total",
			Help: "Decoded state updates published outbound, by kind.",
		}, []string{"kind"}),
		PublishDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "percolator_publish_drops_total",
			Help: "Outbound publishes that failed and were dropped.",
		}),

		PersistBatchDur: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "percolator_persist_batch_duration_seconds",
			Help:    "Time spent flushing one snapshot batch to Postgres.",
			Buckets: prometheus.ExponentialBuckets(1e-4, 4, 10),
		}),
		PersistBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "percolator_persist_batch_size",
			Help:    "Rows per flushed snapshot batch.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		PersistRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "percolator_persist_retries_total",
			Help: "Snapshot batch flushes that had to be retried.",
		}),

		ChannelSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "percolator_channel_size",
			Help: "Current depth of an internal channel.",
		}, []string{"channel"}),
		ChannelCapacity: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "percolator_channel_capacity",
			Help: "Capacity of an internal channel.",
		}, []string{"channel"}),
	}
}
