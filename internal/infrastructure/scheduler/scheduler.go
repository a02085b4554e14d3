// Package scheduler runs the background cron jobs: proactive token refresh and nightly
// audit archival.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobFunc is the body of a scheduled job. ctx is cancelled when the job timeout
// elapses or the scheduler stops.
type JobFunc func(ctx context.Context) error

// Config holds scheduler configuration
type Config struct {
	// JobTimeout bounds a single job run
	JobTimeout time.Duration
	// Location is the time zone cron expressions are evaluated in
	Location *time.Location
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		JobTimeout: 20 * time.Minute,
		Location:   time.UTC,
	}
}

// Validate validates the configuration
func (c Config) Validate() error {
	if c.JobTimeout <= 0 {
		return fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// Scheduler runs named jobs on cron expressions with a seconds field.
// A job that is still running when its next tick fires is skipped.
type Scheduler struct {
	config Config
	cron   *cron.Cron
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	jobs      map[string]JobFunc
	isRunning bool
}

// New creates a new scheduler
func New(config Config, logger *zap.Logger) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cronLog := newCronLogger(logger)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		config: config,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(config.Location),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]JobFunc),
	}, nil
}

// Register adds a job under a unique name. Jobs must be registered before Start.
func (s *Scheduler) Register(name, spec string, job JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return ErrSchedulerRunning
	}
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}

	if _, err := s.cron.AddFunc(spec, func() { s.run(name, job) }); err != nil {
		return fmt.Errorf("%w: job %s: %v", ErrInvalidConfig, name, err)
	}
	s.jobs[name] = job

	s.logger.Info("Scheduled job registered",
		zap.String("job", name),
		zap.String("spec", spec),
	)
	return nil
}

// Jobs returns the registered job names
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return
	}
	s.isRunning = true
	s.cron.Start()

	s.logger.Info("Scheduler started",
		zap.Int("jobs", len(s.jobs)),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
}

// Stop stops scheduling new runs, cancels running jobs and waits for them to return.
// A stopped scheduler cannot be restarted.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	done := s.cron.Stop()
	s.cancel()

	select {
	case <-done.Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow runs a registered job synchronously, outside its schedule
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()
	return job(ctx)
}

func (s *Scheduler) run(name string, job JobFunc) {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.JobTimeout)
	defer cancel()

	start := time.Now()
	log := s.logger.With(zap.String("job", name))
	log.Debug("Scheduled job starting")

	if err := job(ctx); err != nil {
		log.Error("Scheduled job failed",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	log.Info("Scheduled job completed", zap.Duration("duration", time.Since(start)))
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func newCronLogger(logger *zap.Logger) cron.Logger {
	return cronLogger{sugar: logger.Named("cron").Sugar()}
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
