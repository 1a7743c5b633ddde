package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		usersRegisteredTotal,
		loginsTotal,
		rateLimitTriggeredTotal,
		adminRequestsTotal,
	)
}

var (
	usersRegisteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "users_registered_total",
			Help: "Total number of new users registered.",
		},
	)

	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logins_total",
			Help: "Login attempts by result.",
		},
		[]string{"result"},
	)

	rateLimitTriggeredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_triggered_total",
			Help: "Total number of times callers have been rate-limited.",
		},
		[]string{"action"},
	)

	adminRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_requests_total",
			Help: "Tracks attempts to use the admin API.",
		},
		[]string{"status"}, // 'authorized', 'unauthorized'
	)
)

func IncUsersRegistered() {
	usersRegisteredTotal.Inc()
}

func IncLogin(result string) {
	loginsTotal.WithLabelValues(norm(result)).Inc()
}

func IncRateLimitTriggered(action string) {
	rateLimitTriggeredTotal.WithLabelValues(norm(action)).Inc()
}

func IncAdminRequest(status string) {
	adminRequestsTotal.WithLabelValues(norm(status)).Inc()
}
