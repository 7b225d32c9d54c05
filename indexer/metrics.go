package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promCheckpoint = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "indexer",
		Name:      "checkpoint_block",
		Help:      "Last block whose delegation events are stored.",
	})
	promHead = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "indexer",
		Name:      "head_block",
		Help:      "Latest block reported by the node.",
	})
	promEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "indexer",
		Name:      "events_total",
		Help:      "Delegation events stored, by kind.",
	}, []string{"kind"})
	promSyncErrors = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "indexer",
		Name:      "sync_errors_total",
		Help:      "Failed sync batches.",
	})
	promSyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Subsystem: "indexer",
		Name:      "sync_duration_seconds",
		Help:      "Time spent per sync batch.",
		Buckets:   prometheus.DefBuckets,
	})
)

func observeBatch(result SyncResult, events []DelegationEvent) {
	promCheckpoint.Set(float64(result.Checkpoint))
	promHead.Set(float64(result.Head))
	for _, ev := range events {
		promEvents.WithLabelValues(string(ev.Kind)).Inc()
	}
}
