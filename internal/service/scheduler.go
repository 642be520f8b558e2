package service

import (
	"context"
	"sync"
	"time"

	"GapWatchAPI/internal/config"
	"GapWatchAPI/internal/logger"
	"GapWatchAPI/internal/metrics"
)

// Checker is satisfied by *MonitorService.
type Checker interface {
	CheckAll(ctx context.Context, now time.Time) ([]*CheckResult, error)
}

// Cleaner is satisfied by *AlertService.
type Cleaner interface {
	CleanUpTask(ctx context.Context, retention time.Duration)
}

// Scheduler drives the periodic gap check.
type Scheduler struct {
	checker   Checker
	cleaner   Cleaner
	cfg       config.SchedulerConfig
	retention time.Duration
	log       *logger.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(checker Checker, cleaner Cleaner, cfg config.SchedulerConfig, retention time.Duration, log *logger.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		checker:   checker,
		cleaner:   cleaner,
		cfg:       cfg,
		retention: retention,
		log:       log.With("scheduler"),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Scheduler) Start() {
	s.log.Info("Starting gap scheduler (every %v)", s.cfg.Interval)

	s.wg.Add(1)
	go s.loop()
}

func (s *Scheduler) Shutdown() {
	s.log.Info("Shutting down gap scheduler...")
	s.cancel()
	s.wg.Wait()
	s.log.Info("Gap scheduler stopped gracefully")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	if s.cfg.RunOnStart {
		s.RunOnce()
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce()
		}
	}
}

// RunOnce performs one full cycle synchronously.
func (s *Scheduler) RunOnce() {
	ctx := s.ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	results, err := s.checker.CheckAll(ctx, s.now())
	metrics.CheckCycleDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		s.log.Error("Check cycle finished with errors: %v", err)
	}

	raised := 0
	for _, r := range results {
		if r.Alert != nil {
			raised++
		}
	}
	s.log.Debug("Checked %d monitors, %d new alert(s) in %v", len(results), raised, time.Since(start))

	if s.cleaner != nil && s.retention > 0 {
		s.cleaner.CleanUpTask(ctx, s.retention)
	}
}
