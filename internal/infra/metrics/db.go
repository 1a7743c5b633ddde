package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolStats, storageErrorsTotal) }

var (
	dbPoolStats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_stats",
			Help: "Current state of the postgres connection pool.",
		},
		[]string{"state"}, // 'total', 'idle', 'in_use'
	)

	storageErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_storage_errors_total",
			Help: "Ledger writes that failed to reach durable storage.",
		},
		[]string{"operation"},
	)
)

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolStats.WithLabelValues("total").Set(float64(total))
	dbPoolStats.WithLabelValues("idle").Set(float64(idle))
	dbPoolStats.WithLabelValues("in_use").Set(float64(inUse))
}

func IncStorageError(operation string) {
	storageErrorsTotal.WithLabelValues(norm(operation)).Inc()
}
