package events

import (
	"time"

	"github.com/fieldmatch/dispatchd/core/model"
)

// ResponseAction is the outcome of one offer to one candidate.
type ResponseAction string

const (
	ActionAccepted ResponseAction = "accepted"
	ActionRejected ResponseAction = "rejected"
	ActionTimeout  ResponseAction = "timeout"
)

// JobSubmittedEvent is published when a job enters matching.
type JobSubmittedEvent struct {
	Job        model.JobRequest
	Candidates int
}

// OfferSentEvent is published for each offer pushed to a candidate.
type OfferSentEvent struct {
	DispatchID string
	ProviderID string
	Cursor     int
	Deadline   time.Time
}

// OfferResolvedEvent is published when one offer resolves.
type OfferResolvedEvent struct {
	DispatchID string
	ProviderID string
	Action     ResponseAction
	Latency    time.Duration
}

// DispatchResolvedEvent is published when a dispatch reaches a terminal
// state.
type DispatchResolvedEvent struct {
	DispatchID        string
	Status            string
	AssignedProvider  string
	ReassignmentCount int
}

// StaleResponseEvent is published when a late or duplicate response is
// dropped.
type StaleResponseEvent struct {
	DispatchID string
	ProviderID string
	Action     ResponseAction
}

// EscalationEvent is published when a dispatch exhausts all candidates.
type EscalationEvent struct {
	DispatchID string
	Job        model.JobRequest
	Attempts   int
}
