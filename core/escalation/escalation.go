// Package escalation hands exhausted dispatches off to operators.
package escalation

import (
	"context"
	"time"

	"github.com/fieldmatch/dispatchd/core/logger"
	"github.com/fieldmatch/dispatchd/core/model"
)

// Attempt is one entry of the cascade history included in an
// escalation.
type Attempt struct {
	ProviderID string        `json:"provider_id"`
	Action     string        `json:"action"` // accepted | rejected | timeout | undeliverable
	Latency    time.Duration `json:"latency"`
	OfferedAt  time.Time     `json:"offered_at"`
}

// Escalation is the payload handed to operator follow-up when a
// dispatch exhausts all candidates.
type Escalation struct {
	DispatchID string           `json:"dispatch_id"`
	Job        model.JobRequest `json:"job"`
	Attempts   []Attempt        `json:"attempts"`
	Reason     string           `json:"reason"`
	RaisedAt   time.Time        `json:"raised_at"`
}

// Escalator receives escalations for human follow-up.
type Escalator interface {
	Escalate(ctx context.Context, esc Escalation) error
}

// LogEscalator records escalations in the service log. It is the
// default when no operator webhook is configured.
type LogEscalator struct {
	Log logger.Logger
}

// Escalate implements Escalator.
func (l LogEscalator) Escalate(_ context.Context, esc Escalation) error {
	l.Log.Warnf("dispatch %s escalated after %d attempts: %s", esc.DispatchID, len(esc.Attempts), esc.Reason)
	return nil
}
