// Copyright 2025 Certen Protocol

package producer

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler drives every registered producer on its own schedule: a cron
// expression for interval-based producers, or back-to-back continuous
// runs for streaming ones. It consults the HealthTracker before every run
// and skips producers currently quarantined.
type Scheduler struct {
	registry *Registry
	health   *HealthTracker
	cron     *cron.Cron
	logger   *log.Logger

	mu             sync.Mutex
	continuous     []*Runner
	stopContinuous chan struct{}
}

// NewScheduler builds a Scheduler over registry, recording health
// transitions to tracker. logger may be nil, in which case the standard
// library's default logger is used.
func NewScheduler(registry *Registry, tracker *HealthTracker, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		registry: registry,
		health:   tracker,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start wires every registered producer onto the cron scheduler (or the
// continuous loop) and begins running them. Start does not block; call
// Stop to shut the scheduler down.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, runner := range s.registry.All() {
		runner := runner
		if runner.Schedule() == "continuous" {
			s.continuous = append(s.continuous, runner)
			continue
		}
		if _, err := s.cron.AddFunc(runner.Schedule(), func() {
			s.runOne(ctx, runner)
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	if len(s.continuous) > 0 {
		s.stopContinuous = make(chan struct{})
		for _, runner := range s.continuous {
			go s.runContinuous(ctx, runner, s.stopContinuous)
		}
	}
	return nil
}

// Stop halts the cron scheduler and every continuous loop, waiting for
// in-flight jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopContinuous != nil {
		close(s.stopContinuous)
		s.stopContinuous = nil
	}
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runContinuous(ctx context.Context, runner *Runner, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
			s.runOne(ctx, runner)
		}
	}
}

func (s *Scheduler) runOne(ctx context.Context, runner *Runner) {
	state := s.health.Get(runner.Name())
	now := time.Now()
	if state.Quarantined(now) {
		return
	}

	res := runner.Run(ctx)
	if err := s.health.Record(ctx, runner.Domain(), res); err != nil {
		s.logger.Printf("producer %s: health record failed: %v", runner.Name(), err)
	}
	if res.Health == HealthError {
		s.logger.Printf("producer %s: run failed: %v", runner.Name(), res.Errors)
	}
}
