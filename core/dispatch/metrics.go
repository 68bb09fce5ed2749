package dispatch

import "github.com/prometheus/client_golang/prometheus"

var (
	offersSent         prometheus.Counter
	offerOutcomes      *prometheus.CounterVec
	dispatchesResolved *prometheus.CounterVec
	activeDispatches   prometheus.Gauge
	staleResponses     prometheus.Counter
	resolutionLatency  prometheus.Histogram
	pushSuccess        prometheus.Counter
	pushFailure        prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (prometheus.Counter, *prometheus.CounterVec, *prometheus.CounterVec, prometheus.Gauge, prometheus.Counter, prometheus.Histogram, prometheus.Counter, prometheus.Counter) {
	sent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offers_sent_total",
		Help: "Number of job offers pushed to providers",
	})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_offer_outcomes_total",
		Help: "Per-offer outcomes",
	}, []string{"action"})
	resolved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatches_resolved_total",
		Help: "Dispatches reaching a terminal state",
	}, []string{"status"})
	active := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatches_active",
		Help: "Number of in-flight dispatches",
	})
	stale := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_stale_responses_total",
		Help: "Late or duplicate provider responses dropped",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_resolution_latency_seconds",
		Help:    "Time from dispatch creation to terminal state",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})
	pushOK := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "push_delivery_success_total",
		Help: "Number of successful push deliveries",
	})
	pushKO := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "push_delivery_failure_total",
		Help: "Number of failed push deliveries",
	})
	return sent, outcomes, resolved, active, stale, latency, pushOK, pushKO
}

func init() {
	offersSent, offerOutcomes, dispatchesResolved, activeDispatches, staleResponses, resolutionLatency, pushSuccess, pushFailure = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(offersSent, offerOutcomes, dispatchesResolved, activeDispatches, staleResponses, resolutionLatency, pushSuccess, pushFailure)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	offersSent, offerOutcomes, dispatchesResolved, activeDispatches, staleResponses, resolutionLatency, pushSuccess, pushFailure = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
