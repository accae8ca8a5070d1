package notifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "violationstack_notifications_total",
			Help: "Driver notifications by final outcome.",
		},
		[]string{"outcome"},
	)
	notificationRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "violationstack_notification_retries_total",
			Help: "Retried notification sends after a transient failure.",
		},
	)
	sendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "violationstack_whatsapp_send_duration_seconds",
			Help:    "Duration of WhatsApp API requests.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)
)
