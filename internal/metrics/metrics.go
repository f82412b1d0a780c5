package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the review service.
type Metrics struct {
	SnapshotsApplied prometheus.Counter
	Transitions      *prometheus.CounterVec
	WriteFailures    prometheus.Counter
	Arrivals         prometheus.Counter
	Summaries        *prometheus.CounterVec
	PartitionSize    *prometheus.GaugeVec
	IngestedMessages *prometheus.CounterVec
}

// New registers all collectors with reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SnapshotsApplied: factory.NewCounter(prometheus.CounterOpts{
			Name: "userdeck_snapshots_applied_total",
			Help: "Remote snapshots reclassified into the review partitions",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "userdeck_transitions_total",
			Help: "Optimistic review transitions by target status",
		}, []string{"target"}),
		WriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "userdeck_transition_write_failures_total",
			Help: "Remote status patches that failed after an optimistic transition",
		}),
		Arrivals: factory.NewCounter(prometheus.CounterOpts{
			Name: "userdeck_pending_arrivals_total",
			Help: "New pending submissions observed between consecutive snapshots",
		}),
		Summaries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "userdeck_summaries_total",
			Help: "Summary generation requests by result",
		}, []string{"result"}),
		PartitionSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "userdeck_partition_size",
			Help: "Records currently held in each review partition",
		}, []string{"status"}),
		IngestedMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "userdeck_ingested_messages_total",
			Help: "Upstream submission messages by result",
		}, []string{"result"}),
	}
}
