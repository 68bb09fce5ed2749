// Package app wires the dispatch service together from configuration.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldmatch/dispatchd/api/httpapi"
	"github.com/fieldmatch/dispatchd/config"
	coreanalytics "github.com/fieldmatch/dispatchd/core/analytics"
	"github.com/fieldmatch/dispatchd/core/dispatch"
	coreescalation "github.com/fieldmatch/dispatchd/core/escalation"
	coreestimate "github.com/fieldmatch/dispatchd/core/estimate"
	"github.com/fieldmatch/dispatchd/core/matching"
	"github.com/fieldmatch/dispatchd/core/registry"
	infraanalytics "github.com/fieldmatch/dispatchd/infra/analytics"
	infraescalation "github.com/fieldmatch/dispatchd/infra/escalation"
	infraestimate "github.com/fieldmatch/dispatchd/infra/estimate"
	"github.com/fieldmatch/dispatchd/infra/logger"
	"github.com/fieldmatch/dispatchd/infra/metrics"
	"github.com/fieldmatch/dispatchd/infra/mqtt"
	"github.com/fieldmatch/dispatchd/internal/eventbus"
)

// Service owns the orchestrator, the connection registry and the
// surfaces exposed around them.
type Service struct {
	Orchestrator *dispatch.Orchestrator
	Engine       *matching.Engine
	Registry     *registry.Registry

	cfg       *config.Config
	connector *mqtt.Connector
	sweeper   *registry.Sweeper
	router    http.Handler
	bus       eventbus.EventBus
	log       logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	log := logger.New("service")

	reg := registry.New(
		time.Duration(cfg.Registry.FreshnessSeconds)*time.Second,
		time.Duration(cfg.Registry.StaleAfterSeconds)*time.Second,
		logger.New("registry"),
	)
	sweeper := registry.NewSweeper(reg,
		time.Duration(cfg.Registry.SweepIntervalSeconds)*time.Second,
		logger.New("sweeper"),
	)

	memSink := coreanalytics.NewMemorySink()
	var sink coreanalytics.Sink = memSink
	if cfg.Analytics.Enabled {
		sink = coreanalytics.NewMultiSink(memSink, infraanalytics.NewInfluxSinkWithFallback(cfg.Analytics))
	}

	var escalator coreescalation.Escalator
	if cfg.Escalation.URL != "" {
		escalator = infraescalation.NewWebhookEscalator(cfg.Escalation)
	} else {
		escalator = coreescalation.LogEscalator{Log: logger.New("escalation")}
	}

	bus := eventbus.New()
	window := time.Duration(cfg.Dispatch.ResponseWindowSeconds) * time.Second
	orch := dispatch.NewOrchestrator(reg, sink, escalator, bus, logger.New("orchestrator"), window)

	var estimator coreestimate.Estimator
	if cfg.Estimator.BaseURL != "" {
		estimator = infraestimate.NewHTTPEstimator(cfg.Estimator)
	}
	opts := []matching.Option{
		matching.WithLimit(cfg.Dispatch.MaxCandidates),
		matching.WithEstimatorTimeout(time.Duration(cfg.Matching.EstimatorTimeoutSeconds) * time.Second),
	}
	if cfg.Matching.Weights != nil {
		opts = append(opts, matching.WithWeights(*cfg.Matching.Weights))
	}
	engine := matching.NewEngine(estimator, logger.New("matching"), opts...)

	connector, err := mqtt.NewConnector(cfg.MQTT, reg, orch)
	if err != nil {
		return nil, fmt.Errorf("mqtt connector: %w", err)
	}

	zlog := zerolog.New(os.Stdout).With().Timestamp().Str("component", "http").Logger()
	handler := httpapi.NewHandler(engine, orch, memSink, zlog)

	return &Service{
		Orchestrator: orch,
		Engine:       engine,
		Registry:     reg,
		cfg:          cfg,
		connector:    connector,
		sweeper:      sweeper,
		router:       httpapi.Router(handler, zlog),
		bus:          bus,
		log:          log,
	}, nil
}

// Run starts the API server, the sweep schedule and the metrics
// endpoint, blocking until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go func() {
		if err := s.sweeper.Start(ctx); err != nil {
			s.log.Errorf("sweeper: %v", err)
		}
	}()
	if s.cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.Addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: s.cfg.HTTP.Addr, Handler: s.router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("http shutdown: %v", err)
		}
	}()
	s.log.Infof("listening on %s", s.cfg.HTTP.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.bus != nil {
		s.bus.Close()
	}
	if s.connector != nil {
		return s.connector.Close()
	}
	return nil
}
