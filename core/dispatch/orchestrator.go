package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldmatch/dispatchd/core/analytics"
	"github.com/fieldmatch/dispatchd/core/escalation"
	"github.com/fieldmatch/dispatchd/core/events"
	"github.com/fieldmatch/dispatchd/core/logger"
	"github.com/fieldmatch/dispatchd/core/model"
	"github.com/fieldmatch/dispatchd/core/push"
	"github.com/fieldmatch/dispatchd/core/registry"
	"github.com/fieldmatch/dispatchd/internal/eventbus"
)

var (
	// ErrNoCandidates is returned when a job has zero eligible providers.
	ErrNoCandidates = errors.New("dispatch: no eligible candidates")
	// ErrUnknownDispatch is returned for responses naming an unknown or
	// already resolved dispatch.
	ErrUnknownDispatch = errors.New("dispatch: unknown dispatch id")
	// ErrStaleResponse is returned when a response does not match the
	// candidate currently holding the offer.
	ErrStaleResponse = errors.New("dispatch: stale response dropped")
	// ErrAlreadyResolved is returned when cancelling a dispatch that
	// already reached a terminal state.
	ErrAlreadyResolved = errors.New("dispatch: already resolved")
)

// Orchestrator owns the per-job dispatch state machines and drives the
// accept/reject/timeout/cascade protocol over the live-connection
// registry.
type Orchestrator struct {
	registry  *registry.Registry
	analytics analytics.Sink
	escalator escalation.Escalator
	bus       eventbus.EventBus
	log       logger.Logger
	window    time.Duration
	now       func() time.Time

	mu      sync.RWMutex
	records map[string]*record
	history []Snapshot
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an Orchestrator. window is the per-offer
// response deadline; zero selects the 60 second default. The registry
// down handler is installed so a disconnected offeree advances the
// cascade without waiting for its deadline.
func NewOrchestrator(reg *registry.Registry, sink analytics.Sink, esc escalation.Escalator, bus eventbus.EventBus, log logger.Logger, window time.Duration, opts ...Option) *Orchestrator {
	if window <= 0 {
		window = 60 * time.Second
	}
	if sink == nil {
		sink = analytics.NopSink{}
	}
	o := &Orchestrator{
		registry:  reg,
		analytics: sink,
		escalator: esc,
		bus:       bus,
		log:       log,
		window:    window,
		now:       time.Now,
		records:   make(map[string]*record),
	}
	for _, opt := range opts {
		opt(o)
	}
	if reg != nil {
		reg.OnDown(o.ProviderDown)
	}
	return o
}

// Create starts a dispatch for the job over the ranked candidate list.
// An empty list resolves immediately to failed and raises an
// escalation; ErrNoCandidates is returned to the caller.
func (o *Orchestrator) Create(job model.JobRequest, ranked []model.RankedCandidate) (string, error) {
	id := uuid.NewString()
	if o.bus != nil {
		o.bus.Publish(events.JobSubmittedEvent{Job: job, Candidates: len(ranked)})
	}
	if len(ranked) == 0 {
		o.log.Warnf("job %s has no eligible candidates", job.TicketID)
		dispatchesResolved.WithLabelValues(StatusFailed.String()).Inc()
		o.escalate(escalation.Escalation{
			DispatchID: id,
			Job:        job,
			Reason:     "no eligible candidates after filtering",
			RaisedAt:   o.now(),
		})
		// Archive a failed snapshot so the id handed back to the caller
		// stays resolvable.
		o.mu.Lock()
		o.history = append(o.history, Snapshot{
			DispatchID: id,
			TicketID:   job.TicketID,
			Status:     StatusFailed.String(),
			CreatedAt:  o.now(),
		})
		o.mu.Unlock()
		if o.bus != nil {
			o.bus.Publish(events.DispatchResolvedEvent{DispatchID: id, Status: StatusFailed.String()})
		}
		return id, ErrNoCandidates
	}

	rec := &record{
		id:         id,
		job:        job,
		candidates: ranked,
		status:     StatusPending,
		createdAt:  o.now(),
	}
	o.mu.Lock()
	o.records[id] = rec
	activeDispatches.Set(float64(len(o.records)))
	o.mu.Unlock()

	o.log.Infof("dispatch %s created for ticket %s with %d candidates", id, job.TicketID, len(ranked))

	rec.mu.Lock()
	o.offerLoop(rec)
	rec.mu.Unlock()
	return id, nil
}

// offerLoop pushes the offer to the candidate at the cursor, skipping
// unreachable candidates without arming a timer, until an offer is
// delivered or the list is exhausted. Callers hold rec.mu.
func (o *Orchestrator) offerLoop(rec *record) {
	for rec.status == StatusPending {
		if rec.cursor >= len(rec.candidates) {
			o.resolveFailedLocked(rec, "all candidates exhausted without acceptance")
			return
		}
		if rec.cursor > 0 {
			rec.reassignments++
		}
		cand := rec.current()
		pid := cand.Provider.ID

		ch, ok := o.registry.Channel(pid)
		if !ok || !o.registry.IsLive(pid) {
			o.log.Debugf("dispatch %s: candidate %s not reachable, skipping", rec.id, pid)
			o.recordUndeliverableLocked(rec, pid)
			rec.cursor++
			continue
		}

		deadline := o.now().Add(o.window)
		err := ch.Send(push.Message{
			ID:         uuid.NewString(),
			Type:       push.TypeJobOffer,
			DispatchID: rec.id,
			Offer: &push.Offer{
				DispatchID: rec.id,
				Job:        rec.job,
				Score:      cand.Score,
				Distance:   cand.Distance,
				ETAMinutes: cand.ETAMinutes,
				Deadline:   deadline,
			},
		})
		if err != nil {
			pushFailure.Inc()
			o.log.Warnf("dispatch %s: offer delivery to %s failed: %v", rec.id, pid, err)
			o.recordUndeliverableLocked(rec, pid)
			rec.cursor++
			continue
		}
		pushSuccess.Inc()

		rec.responseDeadline = deadline
		rec.offeredAt = o.now()
		rec.offered = append(rec.offered, pid)
		gen := rec.cursor
		rec.timer = time.AfterFunc(o.window, func() { o.onTimeout(rec.id, gen) })
		offersSent.Inc()
		if o.bus != nil {
			o.bus.Publish(events.OfferSentEvent{
				DispatchID: rec.id,
				ProviderID: pid,
				Cursor:     rec.cursor,
				Deadline:   deadline,
			})
		}
		o.log.Infof("dispatch %s: offered to %s (cursor %d)", rec.id, pid, rec.cursor)
		return
	}
}

// Respond applies a provider's accept or reject. Responses for a
// resolved dispatch or from a provider other than the current offeree
// are dropped as stale.
func (o *Orchestrator) Respond(dispatchID, providerID string, action events.ResponseAction, latency time.Duration) error {
	// Only accept and reject are valid provider answers. Anything else
	// is dropped before it can touch timers or analytics.
	if action != events.ActionAccepted && action != events.ActionRejected {
		staleResponses.Inc()
		o.log.Debugf("dispatch %s: invalid action %q from %s dropped", dispatchID, action, providerID)
		return ErrStaleResponse
	}

	rec, ok := o.lookup(dispatchID)
	if !ok {
		staleResponses.Inc()
		o.log.Debugf("response for unknown dispatch %s from %s", dispatchID, providerID)
		return ErrUnknownDispatch
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.status != StatusPending || rec.cursor >= len(rec.candidates) || rec.current().Provider.ID != providerID {
		staleResponses.Inc()
		if o.bus != nil {
			o.bus.Publish(events.StaleResponseEvent{DispatchID: dispatchID, ProviderID: providerID, Action: action})
		}
		o.log.Debugw("stale response dropped", map[string]any{
			"dispatch_id": dispatchID,
			"provider_id": providerID,
			"action":      string(action),
		})
		return ErrStaleResponse
	}

	rec.stopTimer()
	cand := rec.current()
	o.appendAnalytics(rec, cand, string(action), latency)
	rec.attempts = append(rec.attempts, escalation.Attempt{
		ProviderID: providerID,
		Action:     string(action),
		Latency:    latency,
		OfferedAt:  rec.offeredAt,
	})
	offerOutcomes.WithLabelValues(string(action)).Inc()
	if o.bus != nil {
		o.bus.Publish(events.OfferResolvedEvent{
			DispatchID: dispatchID,
			ProviderID: providerID,
			Action:     action,
			Latency:    latency,
		})
	}

	switch action {
	case events.ActionAccepted:
		rec.status = StatusAccepted
		o.log.Infof("dispatch %s accepted by %s after %d reassignments", dispatchID, providerID, rec.reassignments)
		o.notifyOthersLocked(rec, providerID, push.TypeJobTaken)
		o.removeLocked(rec, providerID)
	case events.ActionRejected:
		rec.cursor++
		o.offerLoop(rec)
	}
	return nil
}

// onTimeout fires when the response deadline elapses. gen pins the
// cursor value the timer was armed for, so a timer that lost the race
// against a response observes "already advanced" and returns.
func (o *Orchestrator) onTimeout(dispatchID string, gen int) {
	rec, ok := o.lookup(dispatchID)
	if !ok {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.status != StatusPending || rec.cursor != gen {
		return
	}
	cand := rec.current()
	pid := cand.Provider.ID
	o.log.Infof("dispatch %s: %s did not respond within %s", dispatchID, pid, o.window)
	o.appendAnalytics(rec, cand, string(events.ActionTimeout), o.window)
	rec.attempts = append(rec.attempts, escalation.Attempt{
		ProviderID: pid,
		Action:     string(events.ActionTimeout),
		Latency:    o.window,
		OfferedAt:  rec.offeredAt,
	})
	offerOutcomes.WithLabelValues(string(events.ActionTimeout)).Inc()
	if o.bus != nil {
		o.bus.Publish(events.OfferResolvedEvent{
			DispatchID: dispatchID,
			ProviderID: pid,
			Action:     events.ActionTimeout,
			Latency:    o.window,
		})
	}
	rec.cursor++
	o.offerLoop(rec)
}

// Cancel resolves a pending dispatch to cancelled, winning atomically
// against any in-flight timer or response, and notifies the currently
// offered candidate.
func (o *Orchestrator) Cancel(dispatchID string) error {
	rec, ok := o.lookup(dispatchID)
	if !ok {
		return ErrUnknownDispatch
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.status != StatusPending {
		return ErrAlreadyResolved
	}
	rec.stopTimer()
	if rec.cursor < len(rec.candidates) {
		pid := rec.current().Provider.ID
		if ch, ok := o.registry.Channel(pid); ok {
			_ = ch.Send(push.Message{
				ID:         uuid.NewString(),
				Type:       push.TypeJobCancelled,
				DispatchID: rec.id,
			})
		}
	}
	rec.status = StatusCancelled
	o.log.Infof("dispatch %s cancelled", dispatchID)
	o.removeLocked(rec, "")
	return nil
}

// ProviderDown treats a disconnect of the current offeree as an
// immediate timeout, shortening failure-recovery latency. Installed as
// the registry down handler.
func (o *Orchestrator) ProviderDown(providerID string) {
	o.mu.RLock()
	recs := make([]*record, 0, len(o.records))
	for _, rec := range o.records {
		recs = append(recs, rec)
	}
	o.mu.RUnlock()

	for _, rec := range recs {
		rec.mu.Lock()
		if rec.status == StatusPending && rec.cursor < len(rec.candidates) &&
			rec.current().Provider.ID == providerID && rec.timer != nil {
			o.log.Infof("dispatch %s: offeree %s disconnected, advancing", rec.id, providerID)
			rec.stopTimer()
			cand := rec.current()
			latency := o.now().Sub(rec.offeredAt)
			o.appendAnalytics(rec, cand, string(events.ActionTimeout), latency)
			rec.attempts = append(rec.attempts, escalation.Attempt{
				ProviderID: providerID,
				Action:     string(events.ActionTimeout),
				Latency:    latency,
				OfferedAt:  rec.offeredAt,
			})
			offerOutcomes.WithLabelValues(string(events.ActionTimeout)).Inc()
			rec.cursor++
			o.offerLoop(rec)
		}
		rec.mu.Unlock()
	}
}

// Get returns the snapshot of a live or recently resolved dispatch.
func (o *Orchestrator) Get(dispatchID string) (Snapshot, bool) {
	if rec, ok := o.lookup(dispatchID); ok {
		rec.mu.Lock()
		snap := rec.snapshotLocked()
		rec.mu.Unlock()
		return snap, true
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	for i := len(o.history) - 1; i >= 0; i-- {
		if o.history[i].DispatchID == dispatchID {
			return o.history[i], true
		}
	}
	return Snapshot{}, false
}

// Pending returns the number of in-flight dispatches.
func (o *Orchestrator) Pending() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.records)
}

// History returns snapshots of resolved dispatches in resolution order.
func (o *Orchestrator) History() []Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]Snapshot(nil), o.history...)
}

func (o *Orchestrator) lookup(dispatchID string) (*record, bool) {
	o.mu.RLock()
	rec, ok := o.records[dispatchID]
	o.mu.RUnlock()
	return rec, ok
}

// resolveFailedLocked terminates an exhausted dispatch and raises the
// escalation with the full attempt history. Callers hold rec.mu.
func (o *Orchestrator) resolveFailedLocked(rec *record, reason string) {
	rec.stopTimer()
	rec.status = StatusFailed
	o.log.Warnf("dispatch %s failed: %s", rec.id, reason)
	o.escalate(escalation.Escalation{
		DispatchID: rec.id,
		Job:        rec.job,
		Attempts:   append([]escalation.Attempt(nil), rec.attempts...),
		Reason:     reason,
		RaisedAt:   o.now(),
	})
	if o.bus != nil {
		o.bus.Publish(events.EscalationEvent{DispatchID: rec.id, Job: rec.job, Attempts: len(rec.attempts)})
	}
	o.removeLocked(rec, "")
}

// removeLocked takes the record out of the live set and archives its
// snapshot. Callers hold rec.mu.
func (o *Orchestrator) removeLocked(rec *record, assigned string) {
	snap := rec.snapshotLocked()
	if assigned != "" {
		snap.AssignedProvider = assigned
	}
	o.mu.Lock()
	delete(o.records, rec.id)
	o.history = append(o.history, snap)
	activeDispatches.Set(float64(len(o.records)))
	o.mu.Unlock()
	dispatchesResolved.WithLabelValues(rec.status.String()).Inc()
	resolutionLatency.Observe(o.now().Sub(rec.createdAt).Seconds())
	if o.bus != nil {
		o.bus.Publish(events.DispatchResolvedEvent{
			DispatchID:        rec.id,
			Status:            rec.status.String(),
			AssignedProvider:  assigned,
			ReassignmentCount: rec.reassignments,
		})
	}
}

// notifyOthersLocked pushes a notice to every previously offered
// candidate except winner, so stale offer UI can be cleared.
// Delivery is best effort. Callers hold rec.mu.
func (o *Orchestrator) notifyOthersLocked(rec *record, winner string, t push.MessageType) {
	for _, pid := range rec.offered {
		if pid == winner {
			continue
		}
		ch, ok := o.registry.Channel(pid)
		if !ok {
			continue
		}
		if err := ch.Send(push.Message{ID: uuid.NewString(), Type: t, DispatchID: rec.id}); err != nil {
			o.log.Debugf("dispatch %s: %s notice to %s failed: %v", rec.id, t, pid, err)
		}
	}
}

// recordUndeliverableLocked notes a skipped candidate in the attempt
// history. Callers hold rec.mu.
func (o *Orchestrator) recordUndeliverableLocked(rec *record, pid string) {
	offerOutcomes.WithLabelValues("undeliverable").Inc()
	rec.attempts = append(rec.attempts, escalation.Attempt{
		ProviderID: pid,
		Action:     "undeliverable",
		OfferedAt:  o.now(),
	})
}

// appendAnalytics writes one response fact. Failures are logged, never
// propagated; analytics must not disturb dispatch.
func (o *Orchestrator) appendAnalytics(rec *record, cand model.RankedCandidate, action string, latency time.Duration) {
	now := o.now()
	err := o.analytics.Append(context.Background(), analytics.Record{
		DispatchID:  rec.id,
		ProviderID:  cand.Provider.ID,
		Action:      action,
		Latency:     latency,
		HourOfDay:   now.Hour(),
		Weekday:     now.Weekday(),
		CurrentJobs: cand.Provider.CurrentJobs,
		Distance:    cand.Distance,
		RecordedAt:  now,
	})
	if err != nil {
		o.log.Errorf("analytics append failed: %v", err)
	}
}

// escalate hands the payload to the configured escalator, if any.
func (o *Orchestrator) escalate(esc escalation.Escalation) {
	if o.escalator == nil {
		return
	}
	if err := o.escalator.Escalate(context.Background(), esc); err != nil {
		o.log.Errorf("escalation failed for dispatch %s: %v", esc.DispatchID, err)
	}
}
