package salesapi

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Query outcomes recorded by Metrics.
const (
	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomeRejected = "rejected"
)

// Metrics holds Prometheus metrics for the query surface.
type Metrics struct {
	QueriesTotal  *prometheus.CounterVec
	QueryDuration prometheus.Histogram
	InfoRequests  prometheus.Counter
}

// NewMetrics creates the query metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	queriesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contoso_sales_queries_total",
		Help: "Total number of sales queries by outcome",
	}, []string{"outcome"})

	queryDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "contoso_sales_query_duration_seconds",
		Help:    "Time spent executing sales queries",
		Buckets: prometheus.DefBuckets,
	})

	infoRequests := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "contoso_sales_database_info_requests_total",
		Help: "Total number of database info requests",
	})

	reg.MustRegister(queriesTotal)
	reg.MustRegister(queryDuration)
	reg.MustRegister(infoRequests)

	return &Metrics{
		QueriesTotal:  queriesTotal,
		QueryDuration: queryDuration,
		InfoRequests:  infoRequests,
	}
}
