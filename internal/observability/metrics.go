package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for GDALedger.
type Metrics struct {
	// --- Core processing ---
	CoreCommandsApplied  *prometheus.CounterVec
	CoreCommandsRejected *prometheus.CounterVec
	CoreCommandDuration  *prometheus.HistogramVec
	CoreJournals         *prometheus.CounterVec
	CoreSequence         prometheus.Gauge

	// --- Auction ---
	ListingsOpened     prometheus.Counter
	ListingsClosed     prometheus.Counter
	QuotesComputed     *prometheus.CounterVec
	QuotedPrice        prometheus.Histogram
	ItemsSold          prometheus.Counter
	EscrowTopUps       *prometheus.CounterVec
	EscrowTopUpAmount  *prometheus.CounterVec
	OrderRecordsOpened *prometheus.CounterVec
	MarketplaceErrors  prometheus.Counter

	// --- Channels & backpressure ---
	ChannelSize        *prometheus.GaugeVec
	ChannelCapacity    *prometheus.GaugeVec
	ChannelUtilization *prometheus.GaugeVec
	ProjectionDrops    *prometheus.CounterVec
	PublishDrops       prometheus.Counter

	// --- Idempotency ---
	IdempotencyDuplicates *prometheus.CounterVec
	DedupTier2Errors      prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten   prometheus.Counter
	PersistJournalsWritten prometheus.Counter
	PersistBatchSize       prometheus.Histogram
	PersistBatchDur        prometheus.Histogram
	PersistErrors          *prometheus.CounterVec
	PersistRetry           prometheus.Counter
	PersistLastSequence    prometheus.Gauge

	// --- Projections ---
	ProjectionUpdateDur *prometheus.HistogramVec
	ProjectionWatermark *prometheus.GaugeVec

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics registers the metrics with the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers the metrics with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		// Core processing
		CoreCommandsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gda_core_commands_applied_total",
			Help: "Commands successfully applied by core",
		}, []string{"command"}),

		CoreCommandsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gda_core_commands_rejected_total",
			Help: "Commands rejected, by error kind",
		}, []string{"command", "reason"}),

		CoreCommandDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gda_core_command_apply_duration_seconds",
			Help:    "Time to apply a single command in core",
			Buckets: latencyBuckets,
		}, []string{"command"}),

		CoreJournals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gda_core_journals_generated_total",
			Help: "Journal entries generated",
		}, []string{"journal_type"}),

		CoreSequence: f.NewGauge(prometheus.GaugeOpts{
			Name: "gda_core_sequence",
			Help: "Current global sequence number",
		}),

		// Auction
		ListingsOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "gda_listings_opened_total",
			Help: "Listings created",
		}),

		ListingsClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "gda_listings_closed_total",
			Help: "Listings closed after their end time",
		}),

		QuotesComputed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gda_quotes_computed_total",
			Help: "Price computations, by outcome",
		}, []string{"outcome"}),

		QuotedPrice: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gda_quoted_price",
			Help:    "Cumulative prices charged to placed orders",
			Buckets: prometheus.ExponentialBuckets(1, 10, 12),
		}),

		ItemsSold: f.NewCounter(prometheus.CounterOpts{
			Name: "gda_items_sold_total",
			Help: "Units recorded as sold across all listings",
		}),

		EscrowTopUps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gda_escrow_top_ups_total",
			Help: "Escrow shortfall transfers",
		}, []string{"denomination"}),

		EscrowTopUpAmount: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gda_escrow_top_up_amount_total",
			Help: "Sum of escrow shortfall transfers in base units",
		}, []string{"denomination"}),

		OrderRecordsOpened: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gda_order_records_opened_total",
			Help: "Order records allocated",
		}, []string{"public"}),

		MarketplaceErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "gda_marketplace_errors_total",
			Help: "Failed sell-order delegations",
		}),

		// Channels
		ChannelSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gda_channel_size",
			Help: "Current channel length",
		}, []string{"channel"}),

		ChannelCapacity: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gda_channel_capacity",
			Help: "Channel capacity",
		}, []string{"channel"}),

		ChannelUtilization: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gda_channel_utilization",
			Help: "Channel length / capacity",
		}, []string{"channel"}),

		ProjectionDrops: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gda_projection_drops_total",
			Help: "Outputs dropped on a full projection channel",
		}, []string{"projection"}),

		PublishDrops: f.NewCounter(prometheus.CounterOpts{
			Name: "gda_publish_drops_total",
			Help: "Outbound events dropped on a full publish channel",
		}),

		// Idempotency
		IdempotencyDuplicates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gda_idempotency_duplicates_total",
			Help: "Duplicate commands detected",
		}, []string{"command", "tier"}),

		DedupTier2Errors: f.NewCounter(prometheus.CounterOpts{
			Name: "gda_dedup_tier2_errors_total",
			Help: "Failed database idempotency lookups",
		}),

		// Persistence
		PersistEventsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "gda_persist_events_written_total",
			Help: "Events written to the event log",
		}),

		PersistJournalsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "gda_persist_journals_written_total",
			Help: "Journals written to the event log",
		}),

		PersistBatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gda_persist_batch_size",
			Help:    "Events per persistence batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gda_persist_batch_duration_seconds",
			Help:    "Time to write one persistence batch",
			Buckets: prometheus.DefBuckets,
		}),

		PersistErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gda_persist_errors_total",
			Help: "Persistence failures",
		}, []string{"stage"}),

		PersistRetry: f.NewCounter(prometheus.CounterOpts{
			Name: "gda_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: f.NewGauge(prometheus.GaugeOpts{
			Name: "gda_persist_last_sequence",
			Help: "Last sequence durably written",
		}),

		// Projections
		ProjectionUpdateDur: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gda_projection_update_duration_seconds",
			Help:    "Time to apply one output to a projection",
			Buckets: prometheus.DefBuckets,
		}, []string{"projection"}),

		ProjectionWatermark: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gda_projection_watermark",
			Help: "Last sequence applied per projection",
		}, []string{"projection"}),

		// Query API
		QueryRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gda_query_requests_total",
			Help: "Query requests",
		}, []string{"method"}),

		QueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gda_query_duration_seconds",
			Help:    "Query latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),

		QueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gda_query_errors_total",
			Help: "Query failures",
		}, []string{"method", "code"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
