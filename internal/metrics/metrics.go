package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Friend graph operations recorded by the HTTP layer.
const (
	OpSendRequest   = "send_request"
	OpAcceptRequest = "accept_request"
)

// OutcomeSuccess labels a completed operation; failures are labelled with
// the error kind that ended them.
const OutcomeSuccess = "success"

var (
	registerOnce sync.Once

	friendOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_friend_operations_total",
			Help: "Friend request operations by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	recommendationsSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "social_friend_recommendations_size",
			Help:    "Number of users returned per recommendation call.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
	)
)

// Register exposes the friend graph metrics on reg. Only the first call registers.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(friendOperationsTotal, recommendationsSize)
	})
}

func RecordFriendOperation(operation, outcome string) {
	friendOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

func ObserveRecommendations(n int) {
	recommendationsSize.Observe(float64(n))
}
