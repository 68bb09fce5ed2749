package estimate

import "context"

// MockEstimator returns canned estimates for tests.
type MockEstimator struct {
	Minutes float64
	Err     error
	Calls   int
}

// TravelMinutes returns the configured estimate or error.
func (m *MockEstimator) TravelMinutes(ctx context.Context, distanceMiles float64, bucket TimeBucket) (float64, error) {
	m.Calls++
	if m.Err != nil {
		return 0, m.Err
	}
	return m.Minutes, nil
}
