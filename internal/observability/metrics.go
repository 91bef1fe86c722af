package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intel_messages_fetched_total",
		Help: "The total number of messages fetched from monitored channels",
	}, []string{"channel"})

	ClassifierCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intel_classifier_calls_total",
		Help: "The total number of classification calls by outcome",
	}, []string{"status"})

	ItemsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intel_items_created_total",
		Help: "The total number of intelligence items created",
	}, []string{"category"})

	DailyCapHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intel_daily_cap_hits_total",
		Help: "Times a channel hit its daily item cap during a poll cycle",
	})

	PollCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intel_poll_cycle_duration_seconds",
		Help:    "Duration of a full poll cycle",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	ChannelsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intel_poll_channels_failed_total",
		Help: "Channels skipped in a poll cycle due to platform fetch failures",
	})

	ClusteringCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intel_clustering_calls_total",
		Help: "The total number of clustering calls by outcome",
	}, []string{"status"})

	DigestsPosted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intel_digests_posted_total",
		Help: "The total number of digests posted",
	}, []string{"status"})

	PendingItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "intel_pending_items",
		Help: "Number of pending items at the last digest run",
	})

	SyncWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intel_crm_sync_total",
		Help: "CRM sync attempts on approval by outcome",
	}, []string{"status"})

	Reviews = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intel_reviews_total",
		Help: "Human review decisions by outcome",
	}, []string{"decision"})

	RealtimeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intel_realtime_events_total",
		Help: "Realtime message events by outcome",
	}, []string{"status"})
)

// Outcome label values shared across counters.
const (
	StatusOK     = "ok"
	StatusError  = "error"
	StatusSkip   = "skip"
	StatusDenied = "denied"
)
