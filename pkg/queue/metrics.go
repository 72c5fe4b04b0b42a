package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for task deduplication.
var (
	queueRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reqflow_queue_runs_total",
		Help: "Total number of Run calls",
	})

	queueTasksStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reqflow_queue_tasks_started_total",
		Help: "Total number of tasks actually executed",
	})

	queueJoined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reqflow_queue_joined_total",
		Help: "Total number of Run calls that joined a pending task",
	})

	queuePending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reqflow_queue_pending",
		Help: "Number of tasks currently in flight",
	})
)
