package analytics

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary aggregates response records for the reporting endpoint.
type Summary struct {
	Total          int     `json:"total"`
	Accepted       int     `json:"accepted"`
	Rejected       int     `json:"rejected"`
	Timeouts       int     `json:"timeouts"`
	AcceptanceRate float64 `json:"acceptance_rate"`
	MeanLatencyMs  float64 `json:"mean_latency_ms"`
	P50LatencyMs   float64 `json:"p50_latency_ms"`
	P95LatencyMs   float64 `json:"p95_latency_ms"`
}

// Summarize computes aggregate statistics over the given records.
// Latency quantiles only consider records carrying a response latency,
// i.e. accepted and rejected offers.
func Summarize(records []Record) Summary {
	s := Summary{Total: len(records)}
	var latencies []float64
	for _, r := range records {
		switch r.Action {
		case "accepted":
			s.Accepted++
		case "rejected":
			s.Rejected++
		case "timeout":
			s.Timeouts++
		}
		if r.Action != "timeout" {
			latencies = append(latencies, float64(r.Latency.Milliseconds()))
		}
	}
	if s.Total > 0 {
		s.AcceptanceRate = float64(s.Accepted) / float64(s.Total)
	}
	if len(latencies) > 0 {
		sort.Float64s(latencies)
		s.MeanLatencyMs = stat.Mean(latencies, nil)
		s.P50LatencyMs = stat.Quantile(0.5, stat.Empirical, latencies, nil)
		s.P95LatencyMs = stat.Quantile(0.95, stat.Empirical, latencies, nil)
	}
	return s
}
