package metrics

import (
	"macro-weather-access/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		usersTotal,
		grantsTotal,
		codesTotal,
	)
}

var (
	usersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "users_total",
			Help: "Current number of users by trial state.",
		},
		[]string{"state"}, // 'all', 'in_trial'
	)

	grantsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "access_grants_total",
			Help: "Current number of access grants per module.",
		},
		[]string{"module"},
	)

	codesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "redemption_codes_total",
			Help: "Current number of redemption codes per module and state.",
		},
		[]string{"module", "state"}, // 'total', 'exhausted', 'redeemed'
	)
)

// SetStats publishes a ledger snapshot. Modules absent from the snapshot keep
// their last value, so callers pass every known module.
func SetStats(s *model.Stats) {
	if s == nil {
		return
	}
	usersTotal.WithLabelValues("all").Set(float64(s.Users))
	usersTotal.WithLabelValues("in_trial").Set(float64(s.UsersInTrial))
	for module, n := range s.GrantsByModule {
		grantsTotal.WithLabelValues(norm(module)).Set(float64(n))
	}
	for module, cs := range s.CodesByModule {
		codesTotal.WithLabelValues(norm(module), "total").Set(float64(cs.Total))
		codesTotal.WithLabelValues(norm(module), "exhausted").Set(float64(cs.Exhausted))
		codesTotal.WithLabelValues(norm(module), "redeemed").Set(float64(cs.Redeemed))
	}
}
