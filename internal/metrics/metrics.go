// Package metrics exposes NIB pool-occupancy and eviction metrics via
// github.com/prometheus/client_golang.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds the gauges and counters the API server's /metrics
// handler serves.
type Registry struct {
	PoolOccupancy *prometheus.GaugeVec
	Evictions     prometheus.Counter
	NoRoute       prometheus.Counter
}

// NewRegistry constructs and registers a fresh Registry against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		PoolOccupancy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ipnib",
			Name:      "pool_occupancy",
			Help:      "Number of occupied slots per NIB pool.",
		}, []string{"pool"}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ipnib",
			Name:      "nc_evictions_total",
			Help:      "Total number of neighbor-cache entries evicted to make room for a new one.",
		}),
		NoRoute: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ipnib",
			Name:      "no_route_total",
			Help:      "Total number of GetRoute calls that found no next hop.",
		}),
	}
	reg.MustRegister(r.PoolOccupancy, r.Evictions, r.NoRoute)
	return r
}

// SetPoolOccupancy records the current fill level of a named pool.
func (r *Registry) SetPoolOccupancy(pool string, occupied int) {
	r.PoolOccupancy.WithLabelValues(pool).Set(float64(occupied))
}
