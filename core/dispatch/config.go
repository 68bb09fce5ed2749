package dispatch

// Config defines orchestrator settings.
type Config struct {
	ResponseWindowSeconds int `json:"response_window_seconds"`
	MaxCandidates         int `json:"max_candidates"`
}

// SetDefaults fills zero values with the documented defaults.
func (c *Config) SetDefaults() {
	if c.ResponseWindowSeconds <= 0 {
		c.ResponseWindowSeconds = 60
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 5
	}
}
