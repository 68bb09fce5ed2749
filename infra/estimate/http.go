// Package estimate binds the core estimator interface to the external
// estimation service over HTTP.
package estimate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	coreestimate "github.com/fieldmatch/dispatchd/core/estimate"
)

// Config defines the external estimator endpoint.
type Config struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 2
	}
}

// HTTPEstimator calls the external estimation service. Callers treat
// any error as non-fatal and substitute the deterministic fallback.
type HTTPEstimator struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPEstimator creates an estimator with a bounded HTTP client.
func NewHTTPEstimator(cfg Config) *HTTPEstimator {
	cfg.SetDefaults()
	return &HTTPEstimator{
		BaseURL: cfg.BaseURL,
		Client:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
}

type requestBody struct {
	DistanceMiles float64 `json:"distance_miles"`
	TimeOfDay     string  `json:"time_of_day"`
}

type responseBody struct {
	TravelMinutes float64 `json:"travel_minutes"`
	ModelVersion  string  `json:"model_version"`
}

// TravelMinutes implements estimate.Estimator.
func (h *HTTPEstimator) TravelMinutes(ctx context.Context, distanceMiles float64, bucket coreestimate.TimeBucket) (float64, error) {
	payload, _ := json.Marshal(requestBody{DistanceMiles: distanceMiles, TimeOfDay: bucket.String()})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/estimate/travel", bytes.NewBuffer(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("estimator returned status %d", resp.StatusCode)
	}
	var r responseBody
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return 0, err
	}
	if r.TravelMinutes < 0 {
		return 0, fmt.Errorf("estimator returned negative travel time")
	}
	return r.TravelMinutes, nil
}
