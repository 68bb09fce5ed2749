package model

import (
	"strings"
	"time"
)

// DayWindow is the availability window of a provider for one weekday.
type DayWindow struct {
	Start string `json:"start"` // "09:00"
	End   string `json:"end"`   // "18:00"
}

// CandidateProvider is a snapshot of a field worker eligible for
// matching. It is supplied fresh for every matching call by the provider
// directory and treated as read-only input.
type CandidateProvider struct {
	ID            string                     `json:"id"`
	Name          string                     `json:"name"`
	Skills        []string                   `json:"skills"`
	Rating        float64                    `json:"rating"`         // 0-5
	ServiceRadius float64                    `json:"service_radius"` // miles
	Active        bool                       `json:"active"`
	Verified      bool                       `json:"verified"`
	Availability  map[time.Weekday]DayWindow `json:"availability"`
	Location      Location                   `json:"location"`
	CurrentJobs   int                        `json:"current_jobs"`
}

// HasSkill reports whether the provider lists the given skill,
// compared case-insensitively.
func (p CandidateProvider) HasSkill(skill string) bool {
	for _, s := range p.Skills {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(skill)) {
			return true
		}
	}
	return false
}

// AvailableAt reports whether the provider has an availability window
// covering the given instant. A window with empty bounds counts as the
// whole day.
func (p CandidateProvider) AvailableAt(t time.Time) bool {
	w, ok := p.Availability[t.Weekday()]
	if !ok {
		return false
	}
	if w.Start == "" && w.End == "" {
		return true
	}
	hm := t.Format("15:04")
	return hm >= w.Start && hm <= w.End
}

// FactorScores holds the five normalized component scores (0-100) that
// make up a candidate's total score.
type FactorScores struct {
	Proximity    float64 `json:"proximity"`
	Workload     float64 `json:"workload"`
	Expertise    float64 `json:"expertise"`
	Rating       float64 `json:"rating"`
	Availability float64 `json:"availability"`
}

// RankedCandidate is a CandidateProvider together with its computed
// score, factor breakdown, distance to the customer and estimated
// arrival time. It is produced by the matching engine and consumed
// immediately by the dispatch orchestrator; it is never persisted.
type RankedCandidate struct {
	Provider   CandidateProvider `json:"provider"`
	Score      int               `json:"score"`
	Factors    FactorScores      `json:"factors"`
	Distance   float64           `json:"distance"` // miles
	ETAMinutes float64           `json:"eta_minutes"`
}
