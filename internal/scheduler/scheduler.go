// Package scheduler runs the periodic jobs of the bot on cron schedules.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rxtech-lab/argo-shortbot/internal/logger"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	"go.uber.org/zap"
)

// Job is one unit of periodic work. The context ends when the scheduler stops.
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner. A job still running when its next tick arrives is skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *logger.Logger

	mu   sync.Mutex
	jobs map[string]Job
	ctx  context.Context
}

// New creates a scheduler. Specs accept an optional seconds field and descriptors such as "@every 1m".
func New(log *logger.Logger) *Scheduler {
	l := log.Named("scheduler")

	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLogger{l}), cron.SkipIfStillRunning(cronLogger{l})),
		),
		logger: l,
		mu:     sync.Mutex{},
		jobs:   make(map[string]Job),
		ctx:    context.Background(),
	}
}

// Register adds a named job. Errors returned by the job are logged.
func (s *Scheduler) Register(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "job %s already registered", name)
	}

	if _, err := s.cron.AddFunc(spec, func() { s.execute(name, job) }); err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid schedule %q for job %s", spec, name)
	}

	s.jobs[name] = job

	return nil
}

// RunNow executes a registered job once, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()

	if !ok {
		return errors.Newf(errors.ErrCodeInvalidParameter, "unknown job %s", name)
	}

	return job(s.context())
}

// Run starts the cron runner and blocks until ctx is cancelled, then waits for running jobs.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.cron.Entries())))

	<-ctx.Done()

	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")

	return nil
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ctx
}

func (s *Scheduler) execute(name string, job Job) {
	start := time.Now()

	if err := job(s.context()); err != nil {
		s.logger.Error("Scheduled job failed", zap.String("job", name), zap.Error(err))

		return
	}

	s.logger.Debug("Scheduled job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
}

// cronLogger routes cron's own messages to zap.
type cronLogger struct {
	l *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
