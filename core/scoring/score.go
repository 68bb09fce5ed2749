// Package scoring computes the weighted multi-factor score of a
// candidate provider against a job.
package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fieldmatch/dispatchd/core/model"
)

// maxConcurrentJobs is the workload ceiling used to normalize the
// workload factor.
const maxConcurrentJobs = 5

// expertiseFloor keeps zero-overlap candidates from being zeroed out on
// the expertise factor.
const expertiseFloor = 20.0

// Weights combines the five factor scores into a total. They must sum
// to 1.0.
type Weights struct {
	Proximity    float64 `json:"proximity"`
	Workload     float64 `json:"workload"`
	Expertise    float64 `json:"expertise"`
	Rating       float64 `json:"rating"`
	Availability float64 `json:"availability"`
}

// DefaultWeights returns the standard factor weights.
func DefaultWeights() Weights {
	return Weights{
		Proximity:    0.35,
		Workload:     0.25,
		Expertise:    0.20,
		Rating:       0.15,
		Availability: 0.05,
	}
}

// Validate checks that the weights sum to 1.0 within a small epsilon.
func (w Weights) Validate() error {
	sum := w.Proximity + w.Workload + w.Expertise + w.Rating + w.Availability
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("factor weights must sum to 1.0, got %.4f", sum)
	}
	return nil
}

// Score computes the weighted total score and the factor breakdown for
// a candidate against a job, given the precomputed distance in miles.
// The now parameter anchors the availability check to the current
// weekday window.
func Score(w Weights, c model.CandidateProvider, job model.JobRequest, distance float64, now time.Time) (int, model.FactorScores) {
	f := model.FactorScores{
		Proximity:    math.Max(0, 100-2*distance),
		Workload:     math.Max(0, 100-float64(c.CurrentJobs)/maxConcurrentJobs*100),
		Expertise:    expertise(c, job.Category),
		Rating:       c.Rating / 5.0 * 100,
	}
	if c.Active && c.AvailableAt(now) {
		f.Availability = 100
	}
	total := w.Proximity*f.Proximity +
		w.Workload*f.Workload +
		w.Expertise*f.Expertise +
		w.Rating*f.Rating +
		w.Availability*f.Availability
	return int(math.Round(total)), f
}

// expertise scales the overlap between the candidate's skill set and
// the job category terms into 0-100 with a flat floor.
func expertise(c model.CandidateProvider, category string) float64 {
	terms := strings.Fields(strings.ToLower(strings.TrimSpace(category)))
	if len(terms) == 0 {
		return expertiseFloor
	}
	skills := make(map[string]bool, len(c.Skills))
	for _, s := range c.Skills {
		for _, tok := range strings.Fields(strings.ToLower(s)) {
			skills[tok] = true
		}
	}
	matched := 0
	for _, t := range terms {
		if skills[t] {
			matched++
		}
	}
	overlap := float64(matched) / float64(len(terms))
	score := expertiseFloor + overlap*(100-expertiseFloor)
	if score > 100 {
		score = 100
	}
	return score
}
