package dispatch

import (
	"sync"
	"time"

	"github.com/fieldmatch/dispatchd/core/escalation"
	"github.com/fieldmatch/dispatchd/core/model"
)

// Status is the lifecycle state of a dispatch.
type Status int

const (
	StatusPending Status = iota
	StatusAccepted
	StatusFailed
	StatusCancelled
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAccepted:
		return "accepted"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// record is the unit of orchestration state for one in-flight job.
// respond, timeout and cancel for the same record are competing writers
// and serialize on mu so exactly one of them wins.
type record struct {
	mu sync.Mutex

	id         string
	job        model.JobRequest
	candidates []model.RankedCandidate

	// cursor indexes the candidate currently holding the offer. It only
	// advances forward.
	cursor           int
	status           Status
	responseDeadline time.Time
	reassignments    int
	offeredAt        time.Time

	// offered lists providers that actually received an offer, used for
	// the job_taken fan-out on acceptance.
	offered  []string
	attempts []escalation.Attempt

	timer     *time.Timer
	createdAt time.Time
}

// stopTimer cancels the armed deadline timer, if any. Callers hold
// rec.mu.
func (r *record) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// current returns the candidate at the cursor.
func (r *record) current() model.RankedCandidate {
	return r.candidates[r.cursor]
}

// Snapshot is a read-only view of a dispatch used by the API surface.
type Snapshot struct {
	DispatchID        string               `json:"dispatch_id"`
	TicketID          string               `json:"ticket_id"`
	Status            string               `json:"status"`
	Cursor            int                  `json:"cursor"`
	CandidateIDs      []string             `json:"candidate_ids"`
	AssignedProvider  string               `json:"assigned_provider,omitempty"`
	ResponseDeadline  time.Time            `json:"response_deadline,omitempty"`
	ReassignmentCount int                  `json:"reassignment_count"`
	Attempts          []escalation.Attempt `json:"attempts"`
	CreatedAt         time.Time            `json:"created_at"`
}

// snapshotLocked builds a Snapshot. Callers hold rec.mu.
func (r *record) snapshotLocked() Snapshot {
	ids := make([]string, len(r.candidates))
	for i, c := range r.candidates {
		ids[i] = c.Provider.ID
	}
	snap := Snapshot{
		DispatchID:        r.id,
		TicketID:          r.job.TicketID,
		Status:            r.status.String(),
		Cursor:            r.cursor,
		CandidateIDs:      ids,
		ResponseDeadline:  r.responseDeadline,
		ReassignmentCount: r.reassignments,
		Attempts:          append([]escalation.Attempt(nil), r.attempts...),
		CreatedAt:         r.createdAt,
	}
	if r.status == StatusAccepted && r.cursor < len(r.candidates) {
		snap.AssignedProvider = r.current().Provider.ID
	}
	return snap
}
