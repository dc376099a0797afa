// Package scheduler triggers nightly releases on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/lan-dot-party/relkit/internal/config"
)

// Scheduler manages the scheduled nightly job.
type Scheduler struct {
	cron    *cron.Cron
	config  *config.SchedulerConfig
	job     *NightlyJob
	logger  *zap.Logger
	running bool
	mu      sync.Mutex
	jobID   cron.EntryID
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(cfg *config.SchedulerConfig, job *NightlyJob, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg == nil {
		return nil, fmt.Errorf("scheduler config is required")
	}

	if job == nil {
		return nil, fmt.Errorf("nightly job is required")
	}

	cl := cron.VerbosePrintfLogger(&cronLogger{logger: logger})
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		),
	)

	return &Scheduler{
		cron:   c,
		config: cfg,
		job:    job,
		logger: logger,
	}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if !s.config.Enabled {
		s.logger.Info("Scheduler is disabled in configuration")
		return nil
	}

	entryID, err := s.cron.AddJob(s.config.Schedule, s.job)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w (schedule: %s)", err, s.config.Schedule)
	}
	s.jobID = entryID

	s.cron.Start()
	s.running = true

	entry := s.cron.Entry(entryID)
	s.logger.Info("Scheduler started",
		zap.String("schedule", s.config.Schedule),
		zap.Time("next_run", entry.Next),
	)

	return nil
}

// Stop gracefully stops the scheduler, waiting for a running job.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false

	s.logger.Info("Scheduler stopped")
}

// IsRunning returns whether the scheduler is currently running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// cronLogger adapts zap.Logger to cron's logger interface.
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Printf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// RunOnce runs the nightly job once immediately.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.job.RunWithContext(ctx)
}
