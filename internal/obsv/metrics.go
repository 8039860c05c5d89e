// Package obsv defines the Prometheus metrics for a dbclient pool
// (SPEC_FULL.md §3 "pool and connection observability"),
// generalizing the teacher's internal/metrics.Collector from a
// per-tenant label set to a per-backend one.
package obsv

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the Prometheus metrics for one dbclient pool.
type Collector struct {
	Registry *prometheus.Registry

	connectionsActive *prometheus.GaugeVec
	connectionsIdle   *prometheus.GaugeVec
	connectionsTotal  *prometheus.GaugeVec
	connectionsWaiting *prometheus.GaugeVec
	acquireDuration   *prometheus.HistogramVec
	poolExhausted     *prometheus.CounterVec
	databaseErrors    *prometheus.CounterVec
}

// New creates and registers the metrics on a fresh registry. Safe to call
// multiple times — each call is independent, matching the teacher's
// metrics.New.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,
		connectionsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dbclient_connections_active",
				Help: "Number of connections currently acquired from the pool",
			},
			[]string{"backend"},
		),
		connectionsIdle: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dbclient_connections_idle",
				Help: "Number of idle connections held by the pool",
			},
			[]string{"backend"},
		),
		connectionsTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dbclient_connections_total",
				Help: "Total connections (idle + active) owned by the pool",
			},
			[]string{"backend"},
		),
		connectionsWaiting: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dbclient_connections_waiting",
				Help: "Number of goroutines waiting in Acquire",
			},
			[]string{"backend"},
		),
		acquireDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dbclient_acquire_duration_seconds",
				Help:    "Time spent waiting for pool.Acquire()",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
			[]string{"backend"},
		),
		poolExhausted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dbclient_pool_exhausted_total",
				Help: "Total number of times Acquire had to wait for a free connection",
			},
			[]string{"backend"},
		),
		databaseErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dbclient_database_errors_total",
				Help: "Database errors surfaced to callers, by kind",
			},
			[]string{"backend", "kind"},
		),
	}

	reg.MustRegister(
		c.connectionsActive,
		c.connectionsIdle,
		c.connectionsTotal,
		c.connectionsWaiting,
		c.acquireDuration,
		c.poolExhausted,
		c.databaseErrors,
	)

	return c
}

// UpdatePoolStats sets the connection-count gauges.
func (c *Collector) UpdatePoolStats(backend string, active, idle, total, waiting int) {
	c.connectionsActive.WithLabelValues(backend).Set(float64(active))
	c.connectionsIdle.WithLabelValues(backend).Set(float64(idle))
	c.connectionsTotal.WithLabelValues(backend).Set(float64(total))
	c.connectionsWaiting.WithLabelValues(backend).Set(float64(waiting))
}

// AcquireDuration observes the time spent waiting in Acquire.
func (c *Collector) AcquireDuration(backend string, d time.Duration) {
	c.acquireDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// PoolExhausted increments the exhaustion counter.
func (c *Collector) PoolExhausted(backend string) {
	c.poolExhausted.WithLabelValues(backend).Inc()
}

// DatabaseError increments the database-error counter for the given kind
// (e.g. "io", "protocol", "database", "auth_unsupported").
func (c *Collector) DatabaseError(backend, kind string) {
	c.databaseErrors.WithLabelValues(backend, kind).Inc()
}
