package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the registry.
type Metrics struct {
	RecordsCreated prometheus.Counter
	RecordsUpdated prometheus.Counter
	AccessGranted  prometheus.Counter
	AccessRevoked  prometheus.Counter
	ReadsAllowed   prometheus.Counter
	ReadsDenied    prometheus.Counter
	RequestLatency *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RecordsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medledger_records_created_total",
			Help: "Total number of records created",
		}),
		RecordsUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medledger_records_updated_total",
			Help: "Total number of record reference updates",
		}),
		AccessGranted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medledger_access_granted_total",
			Help: "Total number of access grants issued",
		}),
		AccessRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medledger_access_revoked_total",
			Help: "Total number of access grants revoked",
		}),
		ReadsAllowed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medledger_reads_authorized_total",
			Help: "Total number of authorized read operations",
		}),
		ReadsDenied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medledger_reads_denied_total",
			Help: "Total number of read operations denied authorization",
		}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medledger_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
