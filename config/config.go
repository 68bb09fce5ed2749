package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/fieldmatch/dispatchd/core/dispatch"
	"github.com/fieldmatch/dispatchd/core/scoring"
	"github.com/fieldmatch/dispatchd/infra/analytics"
	"github.com/fieldmatch/dispatchd/infra/escalation"
	"github.com/fieldmatch/dispatchd/infra/estimate"
	"github.com/fieldmatch/dispatchd/infra/metrics"
	"github.com/fieldmatch/dispatchd/infra/mqtt"
)

// HTTPConfig defines the API listener settings.
type HTTPConfig struct {
	Addr string `json:"addr"`
}

// SetDefaults fills zero values.
func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// RegistryConfig defines connection liveness settings.
type RegistryConfig struct {
	FreshnessSeconds     int `json:"freshness_seconds"`
	StaleAfterSeconds    int `json:"stale_after_seconds"`
	SweepIntervalSeconds int `json:"sweep_interval_seconds"`
}

// SetDefaults fills zero values with the documented defaults.
func (c *RegistryConfig) SetDefaults() {
	if c.FreshnessSeconds <= 0 {
		c.FreshnessSeconds = 30
	}
	if c.StaleAfterSeconds <= 0 {
		c.StaleAfterSeconds = 60
	}
	if c.SweepIntervalSeconds <= 0 {
		c.SweepIntervalSeconds = 60
	}
}

// MatchingConfig defines ranking settings. A nil Weights selects the
// standard factor weights.
type MatchingConfig struct {
	EstimatorTimeoutSeconds int              `json:"estimator_timeout_seconds"`
	Weights                 *scoring.Weights `json:"weights"`
}

// Validate checks overridden weights still sum to 1.0.
func (c MatchingConfig) Validate() error {
	if c.Weights == nil {
		return nil
	}
	return c.Weights.Validate()
}

// Config is the root configuration of the service.
type Config struct {
	HTTP       HTTPConfig        `json:"http"`
	MQTT       mqtt.Config       `json:"mqtt"`
	Dispatch   dispatch.Config   `json:"dispatch"`
	Matching   MatchingConfig    `json:"matching"`
	Registry   RegistryConfig    `json:"registry"`
	Estimator  estimate.Config   `json:"estimator"`
	Analytics  analytics.Config  `json:"analytics"`
	Escalation escalation.Config `json:"escalation"`
	Metrics    metrics.Config    `json:"metrics"`
}

// Load reads the configuration file, applies FD_ environment overrides
// and fills defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("FD_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "fd_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.HTTP.SetDefaults()
	cfg.MQTT.SetDefaults()
	cfg.Dispatch.SetDefaults()
	cfg.Registry.SetDefaults()
	cfg.Estimator.SetDefaults()
	cfg.Escalation.SetDefaults()
	cfg.Metrics.SetDefaults()
	if err := cfg.Matching.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
