package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-shortbot/internal/logger"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type SchedulerTestSuite struct {
	suite.Suite
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

func (s *SchedulerTestSuite) TestRegisterRejectsBadSpec() {
	sched := New(logger.NewNop())

	err := sched.Register("scan", "every minute please", func(context.Context) error { return nil })
	s.Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (s *SchedulerTestSuite) TestRegisterRejectsDuplicateName() {
	sched := New(logger.NewNop())
	job := func(context.Context) error { return nil }

	s.Require().NoError(sched.Register("flush", "@every 30s", job))
	s.Error(sched.Register("flush", "@every 1m", job))
}

func (s *SchedulerTestSuite) TestRunNow() {
	sched := New(logger.NewNop())

	var calls atomic.Int32

	s.Require().NoError(sched.Register("scan", "@every 1h", func(context.Context) error {
		calls.Add(1)

		return nil
	}))

	s.NoError(sched.RunNow("scan"))
	s.Equal(int32(1), calls.Load())
	s.Error(sched.RunNow("missing"))
}

func (s *SchedulerTestSuite) TestRunExecutesJobsUntilCancelled() {
	sched := New(logger.NewNop())

	var calls atomic.Int32

	s.Require().NoError(sched.Register("scan", "@every 1s", func(context.Context) error {
		calls.Add(1)

		return errors.New(errors.ErrCodeQueryFailed, "logged, not fatal")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- sched.Run(ctx) }()

	s.Eventually(func() bool { return calls.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(2 * time.Second):
		s.Fail("scheduler did not stop")
	}
}
