package indicator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-shortbot/internal/config"
	"github.com/rxtech-lab/argo-shortbot/internal/logger"
	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type fakeSource struct {
	mu     sync.Mutex
	closes map[string][]float64
	errs   map[string][]error
	calls  map[string]int
}

func (f *fakeSource) Closes(_ context.Context, symbol string, _ string, _ int) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[symbol]++

	if errs := f.errs[symbol]; len(errs) > 0 {
		err := errs[0]
		if len(errs) > 1 {
			f.errs[symbol] = errs[1:]
		}

		if err != nil {
			return nil, err
		}
	}

	return f.closes[symbol], nil
}

type statusUpdate struct {
	status  string
	message string
	symbol  string
}

type fakeStore struct {
	mu       sync.Mutex
	symbols  []string
	controls types.ControlFlags
	samples  map[string]types.IndicatorSample
	statuses []statusUpdate
}

func (f *fakeStore) SymbolsToMonitor() []string {
	return f.symbols
}

func (f *fakeStore) UpdateIndicator(symbol string, sample types.IndicatorSample) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.samples[symbol] = sample
}

func (f *fakeStore) SetIndicatorStatus(status, message, currentSymbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.statuses = append(f.statuses, statusUpdate{status: status, message: message, symbol: currentSymbol})
}

func (f *fakeStore) Controls() types.ControlFlags {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.controls
}

func (f *fakeStore) lastStatus() statusUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.statuses[len(f.statuses)-1]
}

type SamplerTestSuite struct {
	suite.Suite
	source  *fakeSource
	store   *fakeStore
	sampler *Sampler
}

func TestSamplerTestSuite(t *testing.T) {
	suite.Run(t, new(SamplerTestSuite))
}

func rising(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = float64(100 + i)
	}

	return closes
}

func (suite *SamplerTestSuite) SetupTest() {
	suite.source = &fakeSource{
		closes: make(map[string][]float64),
		errs:   make(map[string][]error),
		calls:  make(map[string]int),
	}
	suite.store = &fakeStore{
		symbols:  nil,
		controls: types.DefaultControlFlags(),
		samples:  make(map[string]types.IndicatorSample),
	}

	cfg := config.Default()
	cfg.Indicator.RetryBase = time.Millisecond
	cfg.Intervals.SymbolPause = 0
	cfg.Intervals.IndicatorSweep = 5 * time.Millisecond

	sampler, err := NewSampler(suite.source, suite.store, cfg.Indicator, cfg.Intervals, logger.NewNop())
	suite.Require().NoError(err)
	suite.sampler = sampler
}

func (suite *SamplerTestSuite) TestSweepWritesValues() {
	suite.store.symbols = []string{"AAAUSDT", "BBBUSDT"}
	suite.source.closes["AAAUSDT"] = rising(30)
	suite.source.closes["BBBUSDT"] = rising(30)

	suite.Equal(2, suite.sampler.Sweep(context.Background()))

	v, ok := suite.store.samples["AAAUSDT"].Numeric()
	suite.True(ok)
	suite.InDelta(100.0, v, 1e-9)
	suite.Equal(StatusIdle, suite.store.lastStatus().status)
}

func (suite *SamplerTestSuite) TestShortHistoryIsNewCoin() {
	suite.store.symbols = []string{"NEWUSDT"}
	suite.source.closes["NEWUSDT"] = rising(5)

	suite.sampler.Sweep(context.Background())

	suite.Equal(types.IndicatorStatusInsufficientHistory, suite.store.samples["NEWUSDT"].Status)
	suite.Equal("New_Coin", suite.store.samples["NEWUSDT"].String())
}

func (suite *SamplerTestSuite) TestTransientFailureRetriesThenSucceeds() {
	suite.store.symbols = []string{"AAAUSDT"}
	suite.source.closes["AAAUSDT"] = rising(30)
	suite.source.errs["AAAUSDT"] = []error{
		errors.New(errors.ErrCodeRateLimited, "429"),
		nil,
	}

	suite.Equal(1, suite.sampler.Sweep(context.Background()))
	suite.Equal(2, suite.source.calls["AAAUSDT"])
}

func (suite *SamplerTestSuite) TestExhaustedRetriesLeaveSampleUnchanged() {
	suite.store.symbols = []string{"AAAUSDT"}
	suite.source.errs["AAAUSDT"] = []error{errors.New(errors.ErrCodeExchangeUnavailable, "down")}

	suite.Equal(0, suite.sampler.Sweep(context.Background()))
	_, ok := suite.store.samples["AAAUSDT"]
	suite.False(ok)
	suite.Equal(4, suite.source.calls["AAAUSDT"])
}

func (suite *SamplerTestSuite) TestPermanentFailureMarksUnavailable() {
	suite.store.symbols = []string{"AAAUSDT"}
	suite.source.errs["AAAUSDT"] = []error{errors.New(errors.ErrCodeInvalidParameter, "invalid symbol")}

	suite.Equal(1, suite.sampler.Sweep(context.Background()))
	suite.Equal(types.IndicatorStatusUnavailable, suite.store.samples["AAAUSDT"].Status)
	suite.Equal(1, suite.source.calls["AAAUSDT"])
}

func (suite *SamplerTestSuite) TestPausedAndIdle() {
	suite.Equal(0, suite.sampler.Sweep(context.Background()))
	suite.Equal(StatusIdle, suite.store.lastStatus().status)

	suite.store.symbols = []string{"AAAUSDT"}
	suite.store.controls.IndicatorEnabled = false
	suite.Equal(0, suite.sampler.Sweep(context.Background()))
	suite.Equal(StatusPaused, suite.store.lastStatus().status)
	suite.Zero(suite.source.calls["AAAUSDT"])
}

func (suite *SamplerTestSuite) TestRunStopsWithContext() {
	suite.store.symbols = []string{"AAAUSDT"}
	suite.source.closes["AAAUSDT"] = rising(30)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- suite.sampler.Run(ctx)
	}()

	suite.Eventually(func() bool {
		suite.store.mu.Lock()
		defer suite.store.mu.Unlock()

		_, ok := suite.store.samples["AAAUSDT"]

		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		suite.NoError(err)
	case <-time.After(time.Second):
		suite.Fail("sampler did not stop")
	}
}
