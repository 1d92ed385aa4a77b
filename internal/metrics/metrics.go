package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rsvp_client_api_requests_total",
			Help: "Total number of API requests sent to the event backend",
		},
		[]string{"method", "endpoint", "status"},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rsvp_client_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	realtimeNotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rsvp_client_realtime_notifications_total",
			Help: "Realtime notifications received, by event name and outcome",
		},
		[]string{"event", "outcome"},
	)

	realtimeConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rsvp_client_realtime_connected",
			Help: "1 while the realtime channel is connected",
		},
	)

	togglesDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rsvp_client_attendance_toggles_dropped_total",
			Help: "Attendance toggles ignored because one was already in flight",
		},
	)
)

// ObserveRequest records one API round trip. status 0 means no response.
func ObserveRequest(method, endpoint string, status int, d time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	apiRequestsTotal.WithLabelValues(method, endpoint, code).Inc()
	apiRequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

func RealtimeNotification(event, outcome string) {
	realtimeNotificationsTotal.WithLabelValues(event, outcome).Inc()
}

func RealtimeConnected(up bool) {
	if up {
		realtimeConnected.Set(1)
		return
	}
	realtimeConnected.Set(0)
}

func ToggleDropped() {
	togglesDroppedTotal.Inc()
}
