package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "violationstack_scheduler_cycle_duration_seconds",
		Help:    "Duration of a full polling cycle",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
	tenantRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "violationstack_scheduler_tenant_runs_total",
		Help: "Tenant polling runs by result",
	}, []string{"result"})
)
