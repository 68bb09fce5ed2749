// Package matching filters and ranks candidate providers for a job.
package matching

import (
	"context"
	"sort"
	"time"

	"github.com/fieldmatch/dispatchd/core/estimate"
	"github.com/fieldmatch/dispatchd/core/geo"
	"github.com/fieldmatch/dispatchd/core/logger"
	"github.com/fieldmatch/dispatchd/core/model"
	"github.com/fieldmatch/dispatchd/core/scoring"
)

// DefaultLimit is the maximum number of ranked candidates returned per
// job when no limit is configured.
const DefaultLimit = 5

// DefaultEstimatorTimeout bounds each external estimator call.
const DefaultEstimatorTimeout = 2 * time.Second

// Engine ranks candidate providers against a job.
type Engine struct {
	weights          scoring.Weights
	estimator        estimate.Estimator
	estimatorTimeout time.Duration
	limit            int
	log              logger.Logger
	now              func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLimit overrides the maximum number of candidates returned.
func WithLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

// WithWeights overrides the scoring weights.
func WithWeights(w scoring.Weights) Option {
	return func(e *Engine) { e.weights = w }
}

// WithEstimatorTimeout overrides the per-call estimator timeout.
func WithEstimatorTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.estimatorTimeout = d
		}
	}
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine. The estimator may be nil, in which case
// the fallback travel-time formula is always used.
func NewEngine(est estimate.Estimator, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		weights:          scoring.DefaultWeights(),
		estimator:        est,
		estimatorTimeout: DefaultEstimatorTimeout,
		limit:            DefaultLimit,
		log:              log,
		now:              time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Rank filters ineligible candidates, scores the survivors and returns
// them ordered best-first. An empty slice is a valid result and never
// an error; the orchestrator treats it as an immediate dispatch
// failure.
func (e *Engine) Rank(ctx context.Context, job model.JobRequest, candidates []model.CandidateProvider) []model.RankedCandidate {
	now := e.now()
	bucket := estimate.BucketFor(now)

	ranked := make([]model.RankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.Active || !c.Verified {
			continue
		}
		dist := geo.Distance(
			c.Location.Latitude, c.Location.Longitude,
			job.CustomerLocation.Latitude, job.CustomerLocation.Longitude,
		)
		if dist > c.ServiceRadius {
			continue
		}
		score, factors := scoring.Score(e.weights, c, job, dist, now)
		ranked = append(ranked, model.RankedCandidate{
			Provider:   c,
			Score:      score,
			Factors:    factors,
			Distance:   dist,
			ETAMinutes: e.travelMinutes(ctx, dist, bucket),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].Distance != ranked[j].Distance {
			return ranked[i].Distance < ranked[j].Distance
		}
		return ranked[i].Provider.ID < ranked[j].Provider.ID
	})

	if len(ranked) > e.limit {
		ranked = ranked[:e.limit]
	}
	return ranked
}

// travelMinutes queries the external estimator with a bounded timeout
// and substitutes the deterministic fallback on any failure.
func (e *Engine) travelMinutes(ctx context.Context, dist float64, bucket estimate.TimeBucket) float64 {
	if e.estimator == nil {
		return estimate.FallbackMinutes(dist, bucket)
	}
	cctx, cancel := context.WithTimeout(ctx, e.estimatorTimeout)
	defer cancel()
	min, err := e.estimator.TravelMinutes(cctx, dist, bucket)
	if err != nil {
		e.log.Warnf("estimator unavailable, using fallback: %v", err)
		return estimate.FallbackMinutes(dist, bucket)
	}
	return min
}
