package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_dispatch_requests_total",
			Help: "Dispatch requests consumed from the queue",
		},
		[]string{"channel"},
	)

	pushSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_push_sends_total",
			Help: "Web push deliveries by outcome",
		},
		[]string{"status"}, // status: ok, failed, pruned
	)

	emailSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_email_sends_total",
			Help: "Email deliveries by outcome",
		},
		[]string{"status"}, // status: ok, failed
	)
)
