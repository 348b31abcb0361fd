package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AggregationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregation_runs_total",
			Help: "Cross-tenant aggregation runs by how the report was served",
		},
		[]string{"source"},
	)

	AggregationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aggregation_duration_seconds",
			Help:    "Wall time of a cross-tenant aggregation run",
			Buckets: prometheus.DefBuckets,
		},
	)

	ChannelReadFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_read_failures_total",
			Help: "Channel reads that failed and contributed zero to a tenant",
		},
		[]string{"channel"},
	)

	TenantFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregation_tenant_failures_total",
			Help: "Tenants whose registry lookup failed during aggregation",
		},
	)

	Provisionings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_provisionings_total",
			Help: "Tenant provisioning attempts by outcome",
		},
		[]string{"outcome"},
	)

	SideEffects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provisioning_side_effects_total",
			Help: "Best-effort provisioning side effects by kind and result",
		},
		[]string{"kind", "result"},
	)
)

// Init registers metrics with Prometheus
func Init() {
	prometheus.MustRegister(AggregationRuns)
	prometheus.MustRegister(AggregationDuration)
	prometheus.MustRegister(ChannelReadFailures)
	prometheus.MustRegister(TenantFailures)
	prometheus.MustRegister(Provisionings)
	prometheus.MustRegister(SideEffects)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
