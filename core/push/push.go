// Package push defines the provider-facing push channel contract. A
// channel delivers job offers and status notices to one connected
// provider; delivery is bounded and a failed send means "not
// delivered", never an indefinite hang.
package push

import (
	"time"

	"github.com/fieldmatch/dispatchd/core/model"
)

// MessageType identifies the payload pushed to a provider.
type MessageType string

const (
	TypeJobOffer     MessageType = "job_offer"
	TypeJobTaken     MessageType = "job_taken"
	TypeJobCancelled MessageType = "job_cancelled"
)

// Offer is the payload pushed to the candidate currently holding the
// offer.
type Offer struct {
	DispatchID string           `json:"dispatch_id"`
	Job        model.JobRequest `json:"job"`
	Score      int              `json:"score"`
	Distance   float64          `json:"distance"`
	ETAMinutes float64          `json:"eta_minutes"`
	Deadline   time.Time        `json:"deadline"`
}

// Message is the envelope delivered over a provider channel.
type Message struct {
	ID         string      `json:"id"`
	Type       MessageType `json:"type"`
	DispatchID string      `json:"dispatch_id,omitempty"`
	Offer      *Offer      `json:"offer,omitempty"`
}

// Channel is a live connection to one provider.
type Channel interface {
	// Send delivers the message or returns an error when the provider
	// is unreachable. Implementations must not block indefinitely.
	Send(msg Message) error
	Close() error
}
