// Package metrics holds the Prometheus collectors exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EmailsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailsorter_emails_ingested_total",
		Help: "Emails persisted by mailbox sync",
	})

	EmailsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailsorter_emails_skipped_total",
		Help: "Messages skipped during sync, by reason",
	}, []string{"reason"})

	EmailsArchived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailsorter_emails_archived_total",
		Help: "Provider archive calls, by result",
	}, []string{"result"})

	Classifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailsorter_classifications_total",
		Help: "Completed classifications, by outcome",
	}, []string{"outcome"})

	Unsubscribes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailsorter_unsubscribe_attempts_total",
		Help: "Unsubscribe agent runs, by final status",
	}, []string{"status"})

	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mailsorter_sync_duration_seconds",
		Help:    "Duration of a full user sync",
		Buckets: prometheus.DefBuckets,
	})

	TasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailsorter_background_tasks_total",
		Help: "Background tasks, by result",
	}, []string{"result"})

	SSEConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mailsorter_sse_connections",
		Help: "Open server-sent event connections",
	})
)
