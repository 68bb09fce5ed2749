package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fieldmatch/dispatchd/core/logger"
)

// Sweeper runs Registry.Sweep on a fixed interval.
type Sweeper struct {
	reg      *Registry
	interval time.Duration
	log      logger.Logger
	cron     *cron.Cron
}

// NewSweeper creates a Sweeper with the given interval (default 60s).
func NewSweeper(reg *Registry, interval time.Duration, log logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Sweeper{reg: reg, interval: interval, log: log}
}

// Start schedules the sweep and runs until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	c := cron.New()
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := c.AddFunc(spec, s.reg.Sweep); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.cron = c
	c.Start()
	s.log.Infof("connection sweep scheduled %s", spec)
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
