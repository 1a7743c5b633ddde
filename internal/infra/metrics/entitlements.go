package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		redemptionsTotal,
		accessChecksTotal,
		revocationsTotal,
	)
}

var (
	redemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redemptions_total",
			Help: "Redemption attempts by module and result (ok or rejection reason).",
		},
		[]string{"module", "result"},
	)

	accessChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_checks_total",
			Help: "Gate decisions by module and reason (trial, activated, expired).",
		},
		[]string{"module", "reason"},
	)

	revocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revocations_total",
			Help: "Grants removed by admin revocation, per module.",
		},
		[]string{"module"},
	)
)

func IncRedemption(module, result string) {
	redemptionsTotal.WithLabelValues(norm(module), norm(result)).Inc()
}

func IncAccessCheck(module, reason string) {
	accessChecksTotal.WithLabelValues(norm(module), norm(reason)).Inc()
}

func AddRevocations(module string, n int) {
	if module == "" {
		module = "all"
	}
	revocationsTotal.WithLabelValues(norm(module)).Add(float64(n))
}
