package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "violationstack_pipeline_outcomes_total",
		Help: "Messages processed by channel and outcome",
	}, []string{"channel", "outcome"})

	violationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "violationstack_violations_created_total",
		Help: "Violation records created by category",
	}, []string{"category"})
)
