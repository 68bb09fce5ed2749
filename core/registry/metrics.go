package registry

import "github.com/prometheus/client_golang/prometheus"

var (
	connectionsGauge prometheus.Gauge
	sweepEvictions   prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (prometheus.Gauge, prometheus.Counter) {
	conns := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "provider_connections",
		Help: "Number of registered provider push channels",
	})
	evict := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "provider_sweep_evictions_total",
		Help: "Number of provider connections evicted by the staleness sweep",
	})
	return conns, evict
}

func init() {
	connectionsGauge, sweepEvictions = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers registry metrics on the provided
// registry. If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(connectionsGauge, sweepEvictions)
}

// ResetMetrics reinitializes metric collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	connectionsGauge, sweepEvictions = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
