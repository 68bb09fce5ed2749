// Package registry tracks live provider push channels. At most one
// entry exists per provider id; a new connection supersedes and closes
// the previous one.
package registry

import (
	"sync"
	"time"

	"github.com/fieldmatch/dispatchd/core/logger"
	"github.com/fieldmatch/dispatchd/core/push"
)

// DownHandler is notified when a provider's channel is removed, either
// by an explicit unregister or by the staleness sweep. The orchestrator
// uses it to advance past a disconnected offeree without waiting for
// the response deadline.
type DownHandler func(providerID string)

type entry struct {
	ch       push.Channel
	lastSeen time.Time
}

// Registry is a concurrency-safe map of provider id to live channel.
type Registry struct {
	freshness  time.Duration
	staleAfter time.Duration
	log        logger.Logger
	now        func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
	onDown  DownHandler
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates a Registry. freshness bounds how recent a heartbeat must
// be for a provider to count as live; staleAfter is the eviction
// threshold applied by Sweep.
func New(freshness, staleAfter time.Duration, log logger.Logger, opts ...Option) *Registry {
	if freshness <= 0 {
		freshness = 30 * time.Second
	}
	if staleAfter <= 0 {
		staleAfter = 60 * time.Second
	}
	r := &Registry{
		freshness:  freshness,
		staleAfter: staleAfter,
		log:        log,
		now:        time.Now,
		entries:    make(map[string]*entry),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// OnDown installs the handler invoked when a provider goes away.
func (r *Registry) OnDown(h DownHandler) {
	r.mu.Lock()
	r.onDown = h
	r.mu.Unlock()
}

// Register stores the channel for the provider, closing and replacing
// any previous one.
func (r *Registry) Register(providerID string, ch push.Channel) {
	r.mu.Lock()
	if prev, ok := r.entries[providerID]; ok {
		_ = prev.ch.Close()
		r.log.Debugf("provider %s reconnected, superseding previous channel", providerID)
	}
	r.entries[providerID] = &entry{ch: ch, lastSeen: r.now()}
	n := len(r.entries)
	r.mu.Unlock()
	connectionsGauge.Set(float64(n))
}

// Unregister removes the provider's channel and fires the down handler.
func (r *Registry) Unregister(providerID string) {
	r.mu.Lock()
	e, ok := r.entries[providerID]
	if ok {
		delete(r.entries, providerID)
	}
	h := r.onDown
	n := len(r.entries)
	r.mu.Unlock()
	if !ok {
		return
	}
	_ = e.ch.Close()
	connectionsGauge.Set(float64(n))
	if h != nil {
		h(providerID)
	}
}

// Heartbeat refreshes the provider's lastSeen timestamp. Unknown
// providers are ignored.
func (r *Registry) Heartbeat(providerID string) {
	r.mu.Lock()
	if e, ok := r.entries[providerID]; ok {
		e.lastSeen = r.now()
	}
	r.mu.Unlock()
}

// IsLive reports whether the provider has a channel seen within the
// freshness window.
func (r *Registry) IsLive(providerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[providerID]
	if !ok {
		return false
	}
	return r.now().Sub(e.lastSeen) <= r.freshness
}

// Channel returns the provider's channel when one is registered.
func (r *Registry) Channel(providerID string) (push.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[providerID]
	if !ok {
		return nil, false
	}
	return e.ch, true
}

// Sweep evicts entries not seen within the staleness window, closing
// their channels and firing the down handler for each.
func (r *Registry) Sweep() {
	now := r.now()
	var evicted []string
	var channels []push.Channel

	r.mu.Lock()
	for id, e := range r.entries {
		if now.Sub(e.lastSeen) > r.staleAfter {
			evicted = append(evicted, id)
			channels = append(channels, e.ch)
			delete(r.entries, id)
		}
	}
	h := r.onDown
	n := len(r.entries)
	r.mu.Unlock()

	if len(evicted) == 0 {
		return
	}
	connectionsGauge.Set(float64(n))
	sweepEvictions.Add(float64(len(evicted)))
	for i, id := range evicted {
		_ = channels[i].Close()
		r.log.Warnf("evicted stale provider connection %s", id)
		if h != nil {
			h(id)
		}
	}
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
