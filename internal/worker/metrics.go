package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksSubmittedTotal counts tasks accepted onto the queue.
	TasksSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rarb_worker_tasks_submitted_total",
			Help: "Total number of tasks submitted to the worker pool",
		},
		[]string{"task"},
	)

	// TasksDroppedTotal counts tasks dropped because the queue was full.
	TasksDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rarb_worker_tasks_dropped_total",
			Help: "Total number of tasks dropped due to a full worker queue",
		},
		[]string{"task"},
	)
)
