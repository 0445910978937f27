package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "islatel",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	snapshotsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "islatel",
			Name:      "store_snapshots_applied_total",
			Help:      "Collection snapshots received from the store.",
		},
		[]string{"collection"},
	)

	mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "islatel",
			Name:      "store_mutations_total",
			Help:      "Mutations issued against the store.",
		},
		[]string{"collection", "op"},
	)

	fallbackWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "islatel",
			Name:      "fallback_writes_total",
			Help:      "Mutations applied locally because the store was unreachable.",
		},
		[]string{"collection"},
	)

	duplicateRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "islatel",
			Name:      "duplicate_guest_rejections_total",
			Help:      "Guest creations rejected by the duplicate rule.",
		},
	)

	expiredGuests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "islatel",
			Name:      "expired_guests_total",
			Help:      "Guests auto-cancelled by the expiry sweeper.",
		},
	)

	storeDown = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "islatel",
			Name:      "store_down",
			Help:      "1 while the store connection is considered down.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			snapshotsApplied,
			mutations,
			fallbackWrites,
			duplicateRejections,
			expiredGuests,
			storeDown,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncSnapshot counts a snapshot applied for a collection.
func IncSnapshot(collection string) {
	snapshotsApplied.WithLabelValues(collection).Inc()
}

// IncMutation counts a store mutation.
func IncMutation(collection, op string) {
	mutations.WithLabelValues(collection, op).Inc()
}

// IncFallbackWrite counts a local fallback mutation.
func IncFallbackWrite(collection string) {
	fallbackWrites.WithLabelValues(collection).Inc()
}

// IncDuplicateRejection counts a duplicate-guest rejection.
func IncDuplicateRejection() {
	duplicateRejections.Inc()
}

// AddExpired counts guests cancelled by a sweep.
func AddExpired(n int) {
	expiredGuests.Add(float64(n))
}

// SetStoreDown flips the store health gauge.
func SetStoreDown(down bool) {
	if down {
		storeDown.Set(1)
	} else {
		storeDown.Set(0)
	}
}
