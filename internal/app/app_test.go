package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rxtech-lab/argo-shortbot/internal/config"
	"github.com/rxtech-lab/argo-shortbot/internal/logger"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type AppTestSuite struct {
	suite.Suite
	cfg config.Config
}

func TestAppSuite(t *testing.T) {
	suite.Run(t, new(AppTestSuite))
}

func (s *AppTestSuite) SetupTest() {
	s.cfg = config.Default()
	s.cfg.Storage.DataDir = s.T().TempDir()
}

func (s *AppTestSuite) build() *App {
	a, err := New(&s.cfg, logger.NewNop())
	s.Require().NoError(err)

	s.T().Cleanup(func() {
		a.store.Stop()
		s.NoError(a.bus.Close(context.Background()))
		a.closeStorage()
	})

	return a
}

func (s *AppTestSuite) TestNewBuildsPaperBot() {
	a := s.build()

	s.Nil(a.executor)
	s.Nil(a.notifier)
	s.False(a.engine.LiveEnabled())
	s.FileExists(filepath.Join(s.cfg.Storage.DataDir, s.cfg.Storage.LedgerFile))
	s.FileExists(filepath.Join(s.cfg.Storage.DataDir, s.cfg.Storage.CooldownFile))
}

func (s *AppTestSuite) TestLiveWithoutCredentialsFallsBackToPaper() {
	s.cfg.Binance.LiveEnabled = true

	a := s.build()

	s.Nil(a.executor)
	s.False(a.engine.LiveEnabled())
}

func (s *AppTestSuite) TestLiveWithCredentialsBuildsExecutor() {
	s.cfg.Binance.LiveEnabled = true
	s.cfg.Binance.APIKey = "key"
	s.cfg.Binance.SecretKey = "secret"

	a := s.build()

	s.NotNil(a.executor)
	s.True(a.engine.LiveEnabled())
}

func (s *AppTestSuite) TestHalfConfiguredTelegramIsRejected() {
	s.cfg.Telegram.BotToken = "token"

	_, err := New(&s.cfg, logger.NewNop())
	s.Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeMissingCredentials))
}

func (s *AppTestSuite) TestBadScheduleIsRejected() {
	s.cfg.Intervals.BreakerScan = "whenever"

	_, err := New(&s.cfg, logger.NewNop())
	s.Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (s *AppTestSuite) TestScheduledJobsWriteFiles() {
	a := s.build()

	s.NoError(a.scheduler.RunNow(JobStateFlush))
	s.FileExists(filepath.Join(s.cfg.Storage.DataDir, s.cfg.Storage.StateFile))

	s.NoError(a.scheduler.RunNow(JobSessionStats))
	s.FileExists(filepath.Join(s.cfg.Storage.DataDir, s.cfg.Storage.StatsFile))

	s.NoError(a.scheduler.RunNow(JobBreakerScan))
	s.False(a.store.Controls().GlobalPauseActive)
}

func (s *AppTestSuite) TestRunFailsOnCorruptStateFile() {
	path := filepath.Join(s.cfg.Storage.DataDir, s.cfg.Storage.StateFile)
	s.Require().NoError(os.WriteFile(path, []byte("portfolio: [not, a, map"), 0o600))

	a, err := New(&s.cfg, logger.NewNop())
	s.Require().NoError(err)

	s.Error(a.Run(context.Background()))

	data, err := os.ReadFile(path)
	s.Require().NoError(err)
	s.Equal("portfolio: [not, a, map", string(data))
}
