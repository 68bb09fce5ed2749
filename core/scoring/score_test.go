package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/fieldmatch/dispatchd/core/model"
)

// Monday 11:00 UTC, inside a whole-day availability window.
var testNow = time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC)

func testCandidate() model.CandidateProvider {
	return model.CandidateProvider{
		ID:       "p1",
		Skills:   []string{"network setup", "wifi"},
		Rating:   4.5,
		Active:   true,
		Verified: true,
		Availability: map[time.Weekday]model.DayWindow{
			time.Monday: {},
		},
		CurrentJobs: 1,
	}
}

func testJob() model.JobRequest {
	return model.JobRequest{TicketID: "t1", Category: "network setup"}
}

func TestDefaultWeightsValid(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("default weights invalid: %v", err)
	}
}

func TestWeightsValidateRejectsBadSum(t *testing.T) {
	w := Weights{Proximity: 0.5, Workload: 0.5, Expertise: 0.5}
	if err := w.Validate(); err == nil {
		t.Fatal("expected error for weights not summing to 1.0")
	}
}

func TestScoreFactors(t *testing.T) {
	total, f := Score(DefaultWeights(), testCandidate(), testJob(), 10, testNow)

	if f.Proximity != 80 {
		t.Errorf("proximity: expected 80 at 10 miles, got %f", f.Proximity)
	}
	if f.Workload != 80 {
		t.Errorf("workload: expected 80 with 1 of 5 jobs, got %f", f.Workload)
	}
	if f.Expertise != 100 {
		t.Errorf("expertise: expected 100 for full overlap, got %f", f.Expertise)
	}
	if f.Rating != 90 {
		t.Errorf("rating: expected 90 for 4.5 stars, got %f", f.Rating)
	}
	if f.Availability != 100 {
		t.Errorf("availability: expected 100 inside window, got %f", f.Availability)
	}
	// .35*80 + .25*80 + .20*100 + .15*90 + .05*100 = 86.5
	if total != 87 {
		t.Errorf("total: expected 87, got %d", total)
	}
}

func TestProximityClampsAtFiftyMiles(t *testing.T) {
	_, f := Score(DefaultWeights(), testCandidate(), testJob(), 60, testNow)
	if f.Proximity != 0 {
		t.Fatalf("expected proximity 0 beyond 50 miles, got %f", f.Proximity)
	}
}

func TestWorkloadClampsAtCapacity(t *testing.T) {
	c := testCandidate()
	c.CurrentJobs = 7
	_, f := Score(DefaultWeights(), c, testJob(), 1, testNow)
	if f.Workload != 0 {
		t.Fatalf("expected workload 0 above capacity, got %f", f.Workload)
	}
}

func TestExpertiseFloor(t *testing.T) {
	c := testCandidate()
	c.Skills = []string{"plumbing"}
	_, f := Score(DefaultWeights(), c, testJob(), 1, testNow)
	if f.Expertise != 20 {
		t.Fatalf("expected the floor of 20 with no skill overlap, got %f", f.Expertise)
	}
}

func TestExpertisePartialOverlap(t *testing.T) {
	c := testCandidate()
	c.Skills = []string{"network"}
	_, f := Score(DefaultWeights(), c, testJob(), 1, testNow)
	// One of two category terms matched: 20 + 0.5*80 = 60.
	if math.Abs(f.Expertise-60) > 1e-9 {
		t.Fatalf("expected 60 for half overlap, got %f", f.Expertise)
	}
}

func TestAvailabilityZeroOutsideWindow(t *testing.T) {
	c := testCandidate()
	c.Availability = map[time.Weekday]model.DayWindow{
		time.Monday: {Start: "09:00", End: "10:00"},
	}
	_, f := Score(DefaultWeights(), c, testJob(), 1, testNow)
	if f.Availability != 0 {
		t.Fatalf("expected availability 0 outside window, got %f", f.Availability)
	}
}

func TestAvailabilityZeroWhenInactive(t *testing.T) {
	c := testCandidate()
	c.Active = false
	_, f := Score(DefaultWeights(), c, testJob(), 1, testNow)
	if f.Availability != 0 {
		t.Fatalf("expected availability 0 for inactive provider, got %f", f.Availability)
	}
}
