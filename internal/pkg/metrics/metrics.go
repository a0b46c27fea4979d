// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LedgerOperations counts balance operations by operation and result.
	LedgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appealpro_ledger_operations_total",
		Help: "Credit ledger operations by operation and result",
	}, []string{"operation", "result"})

	// LockRetries counts transactions retried after lock contention.
	LockRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appealpro_lock_retries_total",
		Help: "Transactions retried after a lock wait timeout or deadlock",
	}, []string{"operation"})

	// ProcessedEvents counts payment events by kind and outcome (applied, duplicate, failed, ignored).
	ProcessedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appealpro_payment_events_total",
		Help: "Payment processor events by kind and outcome",
	}, []string{"kind", "outcome"})

	// Generations counts generation requests by funding mode and result.
	Generations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appealpro_generations_total",
		Help: "Appeal generation requests by funding mode and result",
	}, []string{"funding_mode", "result"})

	// IntakeRejections counts appeals refused at intake by the rule that stopped them.
	IntakeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appealpro_intake_rejections_total",
		Help: "Appeal intakes rejected by a payer filing rule",
	}, []string{"rule"})

	// PipelineDuration tracks document pipeline latency.
	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "appealpro_pipeline_duration_seconds",
		Help:    "Document pipeline duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	})

	// JobsProcessed counts background jobs by type and result.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appealpro_jobs_processed_total",
		Help: "Background jobs processed by type and result",
	}, []string{"type", "result"})

	// QueueDepth is the number of jobs pending or in processing.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "appealpro_job_queue_depth",
		Help: "Background jobs waiting or being processed",
	}, []string{"state"})
)
