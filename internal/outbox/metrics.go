package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_outbox_jobs_total",
			Help: "Translation jobs finished by outcome (done, retry, dead, released)",
		},
		[]string{"outcome"},
	)

	jobsClaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_outbox_jobs_claimed_total",
			Help: "Translation jobs claimed from the outbox",
		},
	)

	poolRunningWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_outbox_running_workers",
			Help: "Outbox pool workers currently executing a job",
		},
	)
)
