// Package events defines the dispatch related events emitted on the event bus.
//
// Available event types:
//   - JobSubmittedEvent: a job entered matching
//   - OfferSentEvent: an offer was pushed to a candidate
//   - OfferResolvedEvent: a single offer was accepted, rejected or timed out
//   - DispatchResolvedEvent: a dispatch reached a terminal state
//   - StaleResponseEvent: a late or duplicate provider response was dropped
//   - EscalationEvent: all candidates were exhausted without acceptance
package events
