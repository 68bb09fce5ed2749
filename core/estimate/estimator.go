// Package estimate abstracts the external travel-time estimator. The
// estimator is an external model capability; every call is bounded by a
// timeout and a deterministic fallback formula keeps dispatch
// independent from its availability.
package estimate

import (
	"context"
	"time"
)

// TimeBucket discretizes the time of day for traffic estimation.
type TimeBucket int

const (
	BucketMorning TimeBucket = iota
	BucketMidday
	BucketAfternoon
	BucketEvening
	BucketMidnight
)

// String returns a human-readable representation of the bucket.
func (b TimeBucket) String() string {
	switch b {
	case BucketMorning:
		return "morning"
	case BucketMidday:
		return "midday"
	case BucketAfternoon:
		return "afternoon"
	case BucketEvening:
		return "evening"
	case BucketMidnight:
		return "midnight"
	default:
		return "unknown"
	}
}

// BucketFor maps an instant to its time-of-day bucket.
func BucketFor(t time.Time) TimeBucket {
	switch h := t.Hour(); {
	case h >= 6 && h < 10:
		return BucketMorning
	case h >= 10 && h < 15:
		return BucketMidday
	case h >= 15 && h < 18:
		return BucketAfternoon
	case h >= 18 && h < 23:
		return BucketEvening
	default:
		return BucketMidnight
	}
}

// baseSpeedMph is the average urban travel speed assumed by the
// fallback formula.
const baseSpeedMph = 24.0

// trafficMultiplier returns the fixed fallback multiplier for a bucket.
func trafficMultiplier(b TimeBucket) float64 {
	switch b {
	case BucketMorning:
		return 1.4
	case BucketMidday:
		return 1.0
	case BucketAfternoon:
		return 1.2
	case BucketEvening:
		return 1.5
	case BucketMidnight:
		return 0.8
	default:
		return 1.0
	}
}

// Estimator forecasts travel time for a candidate. Implementations must
// respect the context deadline; callers substitute FallbackMinutes on
// error.
type Estimator interface {
	// TravelMinutes returns the estimated travel time in minutes for
	// the given distance and time-of-day bucket.
	TravelMinutes(ctx context.Context, distanceMiles float64, bucket TimeBucket) (float64, error)
}

// FallbackMinutes is the deterministic estimate used when the external
// estimator is unavailable or times out.
func FallbackMinutes(distanceMiles float64, bucket TimeBucket) float64 {
	if distanceMiles <= 0 {
		return 0
	}
	return distanceMiles / baseSpeedMph * 60 * trafficMultiplier(bucket)
}
