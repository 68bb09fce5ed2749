// Package analytics captures per-offer response facts for downstream
// reporting. Records are append-only and never mutated.
package analytics

import (
	"context"
	"sync"
	"time"
)

// Record describes one candidate's outcome for one dispatch.
type Record struct {
	DispatchID  string        `json:"dispatch_id"`
	ProviderID  string        `json:"provider_id"`
	Action      string        `json:"action"` // accepted | rejected | timeout
	Latency     time.Duration `json:"latency"`
	HourOfDay   int           `json:"hour_of_day"`
	Weekday     time.Weekday  `json:"weekday"`
	CurrentJobs int           `json:"current_jobs"`
	Distance    float64       `json:"distance"`
	RecordedAt  time.Time     `json:"recorded_at"`
}

// Sink persists analytics records.
type Sink interface {
	Append(ctx context.Context, rec Record) error
}

// NopSink discards all records.
type NopSink struct{}

// Append implements Sink.
func (NopSink) Append(context.Context, Record) error { return nil }

// MemorySink keeps records in memory, mainly for tests and the summary
// endpoint.
type MemorySink struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

// Append implements Sink.
func (s *MemorySink) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return nil
}

// All returns a copy of every stored record.
func (s *MemorySink) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// ByDispatch returns the records for one dispatch in append order.
func (s *MemorySink) ByDispatch(dispatchID string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.records {
		if r.DispatchID == dispatchID {
			out = append(out, r)
		}
	}
	return out
}

// MultiSink fans records out to several sinks.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines the given sinks.
func NewMultiSink(sinks ...Sink) *MultiSink { return &MultiSink{sinks: sinks} }

// Append forwards the record to every sink, returning the first error.
func (m *MultiSink) Append(ctx context.Context, rec Record) error {
	var first error
	for _, s := range m.sinks {
		if err := s.Append(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}
