package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "courtbook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	admissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_admissions_total",
			Help:      "Booking admission decisions by result and rejection reason.",
		},
		[]string{"result", "reason"},
	)

	admissionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "booking_admission_duration_seconds",
			Help:      "Time spent admitting a booking, lock wait included.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "Lifecycle transitions by action and result.",
		},
		[]string{"action", "result"},
	)

	outboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Outbox deliveries by result.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, admissions, admissionDuration, transitions, outboxPublished)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// ObserveAdmission records one admission decision. reason is empty on success.
func ObserveAdmission(result, reason string, took time.Duration) {
	admissions.WithLabelValues(result, reason).Inc()
	admissionDuration.Observe(took.Seconds())
}

func IncTransition(action, result string) {
	transitions.WithLabelValues(action, result).Inc()
}

func IncOutbox(result string) {
	outboxPublished.WithLabelValues(result).Inc()
}
