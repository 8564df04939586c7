package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-shortbot/internal/config"
	"github.com/rxtech-lab/argo-shortbot/internal/engine"
	"github.com/rxtech-lab/argo-shortbot/internal/logger"
	"github.com/rxtech-lab/argo-shortbot/internal/state"
	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"github.com/rxtech-lab/argo-shortbot/mocks"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type nopPublisher struct{}

func (nopPublisher) Publish(types.EventType, any) {}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type EngineTestSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	clock     *fakeClock
	settings  *config.Settings
	store     *state.Store
	alerts    *mocks.MockAlertCounter
	losses    *mocks.MockLossScanner
	ledger    *mocks.MockLedgerReader
	executor  *mocks.MockOrderExecutor
	intervals config.IntervalConfig
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (s *EngineTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.clock = &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s.settings = config.NewSettings(config.Default().Trading, nil)
	s.store = state.New(s.settings, nopPublisher{}, logger.NewNop(), state.WithClock(s.clock.Now), state.WithBalance(1000))
	s.alerts = mocks.NewMockAlertCounter(s.ctrl)
	s.losses = mocks.NewMockLossScanner(s.ctrl)
	s.ledger = mocks.NewMockLedgerReader(s.ctrl)
	s.executor = mocks.NewMockOrderExecutor(s.ctrl)
	s.intervals = config.Default().Intervals
	s.intervals.LiveMonitor = 10 * time.Millisecond

	s.Require().NoError(s.store.ToggleControl(types.ControlTrading, types.ActionResume))
	s.Require().NoError(s.store.ToggleControl(types.ControlTradeExecution, types.ActionResume))

	s.store.UpdateMarketData([]types.TickerUpdate{
		{Symbol: "DOGEUSDT", Price: 2.0, Change24h: 30, High24h: 2.1},
		{Symbol: "PEPEUSDT", Price: 0.5, Change24h: 40, High24h: 0.6},
	})
}

func (s *EngineTestSuite) TearDownTest() {
	s.store.Stop()
	s.ctrl.Finish()
}

func (s *EngineTestSuite) paperEngine() *engine.Engine {
	return engine.New(s.store, s.settings, s.alerts, s.losses, s.ledger, s.intervals, logger.NewNop(), engine.WithClock(s.clock.Now))
}

func (s *EngineTestSuite) liveEngine() *engine.Engine {
	return engine.New(s.store, s.settings, s.alerts, s.losses, s.ledger, s.intervals, logger.NewNop(),
		engine.WithClock(s.clock.Now), engine.WithExecutor(s.executor))
}

func (s *EngineTestSuite) signal(e *engine.Engine, symbol string, value float64) {
	sample := types.NewIndicatorValue(value, s.clock.Now())
	s.store.UpdateIndicator(symbol, sample)
	s.Require().NoError(e.HandleIndicator(context.Background(), symbol, sample))
}

func (s *EngineTestSuite) TestEntryOpensPaperTrade() {
	e := s.paperEngine()
	s.alerts.EXPECT().NextAlertNumber(gomock.Any()).Return(int64(7), nil)

	s.signal(e, "DOGEUSDT", 96)

	trade, ok := s.store.Trade("DOGEUSDT")
	s.Require().True(ok)
	s.Equal(int64(7), trade.AlertNumber)
	s.Equal(2.0, trade.EntryPrice)
	s.Equal(3.0, trade.Amount)
	s.Equal(types.TradeSourceBot, trade.Source)
	s.Equal(optional.Some(96.0), trade.EntryIndicator)
	s.Equal(1000.0, s.store.Portfolio().Balance)
	s.Equal(997.0, s.store.AvailableMargin())
}

func (s *EngineTestSuite) TestEntryIgnoresIneligibleSamples() {
	e := s.paperEngine()

	tests := []struct {
		name   string
		symbol string
		sample types.IndicatorSample
	}{
		{name: "below threshold", symbol: "DOGEUSDT", sample: types.NewIndicatorValue(95, s.clock.Now())},
		{name: "insufficient history", symbol: "DOGEUSDT", sample: types.NewInsufficientHistory(s.clock.Now())},
		{name: "unavailable", symbol: "DOGEUSDT", sample: types.NewIndicatorUnavailable(s.clock.Now())},
		{name: "unknown coin", symbol: "NOPEUSDT", sample: types.NewIndicatorValue(99, s.clock.Now())},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			s.NoError(e.HandleIndicator(context.Background(), tc.symbol, tc.sample))
			s.False(s.store.IsOpen(tc.symbol))
		})
	}
}

func (s *EngineTestSuite) TestEntrySkipsCooldownAndDisabledExecution() {
	e := s.paperEngine()

	s.store.AddCooldown("DOGEUSDT", "Manual Add", s.clock.Now().Add(time.Hour))
	s.signal(e, "DOGEUSDT", 99)
	s.False(s.store.IsOpen("DOGEUSDT"))

	s.Require().NoError(s.store.ToggleControl(types.ControlTradeExecution, types.ActionPause))
	s.signal(e, "PEPEUSDT", 99)
	s.False(s.store.IsOpen("PEPEUSDT"))
}

func (s *EngineTestSuite) TestEntrySkipsWhenBalanceIsShort() {
	s.store.SetBalance(4)
	e := s.paperEngine()

	s.signal(e, "DOGEUSDT", 99)
	s.signal(e, "PEPEUSDT", 99)

	s.Equal(0, s.store.OpenCount())
	s.Equal(4.0, s.store.Portfolio().Balance)
}

func (s *EngineTestSuite) TestEntryRespectsOpenRateLimit() {
	e := s.paperEngine()
	s.alerts.EXPECT().NextAlertNumber(gomock.Any()).Return(int64(1), nil)
	s.alerts.EXPECT().NextAlertNumber(gomock.Any()).Return(int64(2), nil)

	s.signal(e, "DOGEUSDT", 99)
	s.signal(e, "PEPEUSDT", 99)
	s.Equal(1, s.store.OpenCount())

	s.clock.Advance(11 * time.Second)
	s.signal(e, "PEPEUSDT", 99)
	s.Equal(2, s.store.OpenCount())
}

func (s *EngineTestSuite) TestConcurrentSignalsOpenOneTrade() {
	e := s.paperEngine()
	s.alerts.EXPECT().NextAlertNumber(gomock.Any()).Return(int64(1), nil).MaxTimes(1)

	sample := types.NewIndicatorValue(99, s.clock.Now())
	s.store.UpdateIndicator("DOGEUSDT", sample)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			_ = e.HandleIndicator(context.Background(), "DOGEUSDT", sample)
		}()
	}
	wg.Wait()

	s.Equal(1, s.store.OpenCount())
}

func (s *EngineTestSuite) TestLiveEntryUsesFillPrice() {
	e := s.liveEngine()
	defer e.Stop()

	s.alerts.EXPECT().NextAlertNumber(gomock.Any()).Return(int64(3), nil)
	s.executor.EXPECT().OpenShort(gomock.Any(), types.ShortOrder{
		Symbol: "DOGEUSDT", Margin: 3, Leverage: 2, TakeProfitPercent: 10,
	}).Return(types.ShortFill{Symbol: "DOGEUSDT", OrderID: 11, EntryPrice: 2.05, Quantity: "3", TakeProfitOrderID: 12, TakeProfitPrice: "1.947"}, nil)
	s.executor.EXPECT().LivePnL(gomock.Any(), "DOGEUSDT").Return(types.LivePnL{PnLUSDT: -0.01, PnLPercent: -0.3}, nil).AnyTimes()

	s.signal(e, "DOGEUSDT", 97)

	trade, ok := s.store.Trade("DOGEUSDT")
	s.Require().True(ok)
	s.Equal(types.TradeSourceLive, trade.Source)
	s.Equal(2.05, trade.EntryPrice)
	s.Equal(1000.0, s.store.Portfolio().Balance)
	s.Eventually(func() bool { return e.LiveMonitorCount() == 1 }, time.Second, 5*time.Millisecond)
}

func (s *EngineTestSuite) TestLiveEntryFailureCoolsDownSymbol() {
	e := s.liveEngine()
	defer e.Stop()

	s.alerts.EXPECT().NextAlertNumber(gomock.Any()).Return(int64(4), nil)
	s.executor.EXPECT().OpenShort(gomock.Any(), gomock.Any()).
		Return(types.ShortFill{}, errors.New(errors.ErrCodeOrderFailed, "Margin is insufficient")) //nolint:exhaustruct // failure

	s.signal(e, "DOGEUSDT", 97)

	s.False(s.store.IsOpen("DOGEUSDT"))
	entry, ok := s.store.Cooldown("DOGEUSDT")
	s.Require().True(ok)
	s.Equal("Live Fail", entry.Reason)
	s.Equal(s.clock.Now().Add(5*time.Minute), entry.Expiry)
	s.Contains(s.store.AlertLog(1)[0].Message, "FAIL: ")
}

func (s *EngineTestSuite) TestPaperSweepTakeProfit() {
	e := s.paperEngine()
	s.alerts.EXPECT().NextAlertNumber(gomock.Any()).Return(int64(1), nil)
	s.signal(e, "DOGEUSDT", 96)

	// 2.0 -> 1.8 is -10% on price, 20% with leverage 2.
	s.store.UpdateMarketData([]types.TickerUpdate{{Symbol: "DOGEUSDT", Price: 1.8, Change24h: 20, High24h: 2.1}})
	s.Equal(1, e.SweepPaperTrades())
	s.False(s.store.IsOpen("DOGEUSDT"))
	s.Equal(1, s.store.Stats().Wins)
	s.InDelta(1000.6, s.store.Portfolio().Balance, 1e-9)
}

func (s *EngineTestSuite) TestPaperSweepIndicatorClose() {
	e := s.paperEngine()
	s.alerts.EXPECT().NextAlertNumber(gomock.Any()).Return(int64(1), nil)
	s.signal(e, "DOGEUSDT", 96)

	s.store.UpdateMarketData([]types.TickerUpdate{{Symbol: "DOGEUSDT", Price: 1.98, Change24h: 20, High24h: 2.1}})

	s.store.UpdateIndicator("DOGEUSDT", types.NewIndicatorValue(70, s.clock.Now()))
	s.Equal(0, e.SweepPaperTrades())
	s.True(s.store.IsOpen("DOGEUSDT"))

	s.store.UpdateIndicator("DOGEUSDT", types.NewIndicatorValue(60, s.clock.Now()))
	s.Equal(1, e.SweepPaperTrades())
	s.False(s.store.IsOpen("DOGEUSDT"))
}

func (s *EngineTestSuite) TestPaperSweepKeepsLosingTradeBelowCloseThreshold() {
	e := s.paperEngine()
	s.alerts.EXPECT().NextAlertNumber(gomock.Any()).Return(int64(1), nil)
	s.signal(e, "DOGEUSDT", 96)

	s.store.UpdateMarketData([]types.TickerUpdate{{Symbol: "DOGEUSDT", Price: 2.2, Change24h: 40, High24h: 2.2}})
	s.store.UpdateIndicator("DOGEUSDT", types.NewIndicatorValue(40, s.clock.Now()))

	s.Equal(0, e.SweepPaperTrades())

	trade, ok := s.store.Trade("DOGEUSDT")
	s.Require().True(ok)
	s.InDelta(-20.0, trade.PnLPercent, 1e-9)
	s.InDelta(-0.6, trade.PnLUSDT, 1e-9)
}

func (s *EngineTestSuite) TestPaperSweepIdleWhileTradingDisabled() {
	e := s.paperEngine()
	s.alerts.EXPECT().NextAlertNumber(gomock.Any()).Return(int64(1), nil)
	s.signal(e, "DOGEUSDT", 96)

	s.Require().NoError(s.store.ToggleControl(types.ControlTrading, types.ActionPause))
	s.store.UpdateMarketData([]types.TickerUpdate{{Symbol: "DOGEUSDT", Price: 1.0, Change24h: 0, High24h: 2.1}})

	s.Equal(0, e.SweepPaperTrades())
	s.True(s.store.IsOpen("DOGEUSDT"))
}

func (s *EngineTestSuite) TestPaperSweepHoldsExitsDuringGlobalPause() {
	e := s.paperEngine()
	s.alerts.EXPECT().NextAlertNumber(gomock.Any()).Return(int64(1), nil)
	s.signal(e, "DOGEUSDT", 96)

	s.store.UpdateMarketData([]types.TickerUpdate{{Symbol: "DOGEUSDT", Price: 1.8, Change24h: 20, High24h: 2.1}})
	s.True(s.store.ActivateGlobalPause(1))

	s.Equal(0, e.SweepPaperTrades())

	trade, ok := s.store.Trade("DOGEUSDT")
	s.Require().True(ok)
	s.InDelta(20.0, trade.PnLPercent, 1e-9)
	s.InDelta(0.6, trade.PnLUSDT, 1e-9)

	s.True(s.store.LiftGlobalPause())
	s.Equal(1, e.SweepPaperTrades())
	s.False(s.store.IsOpen("DOGEUSDT"))
}

func (s *EngineTestSuite) TestConcurrentLiveSignalsAtCapSendOneOrder() {
	s.Require().NoError(s.settings.SetMaxOpenTrades(1))

	e := s.liveEngine()
	defer e.Stop()

	s.alerts.EXPECT().NextAlertNumber(gomock.Any()).Return(int64(1), nil).Times(1)
	s.executor.EXPECT().OpenShort(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, order types.ShortOrder) (types.ShortFill, error) {
			time.Sleep(50 * time.Millisecond)

			return types.ShortFill{Symbol: order.Symbol, EntryPrice: 1.0}, nil //nolint:exhaustruct // partial fill
		}).Times(1)
	s.executor.EXPECT().LivePnL(gomock.Any(), gomock.Any()).Return(types.LivePnL{PnLUSDT: -0.01, PnLPercent: -0.3}, nil).AnyTimes()

	var wg sync.WaitGroup
	for _, symbol := range []string{"DOGEUSDT", "PEPEUSDT"} {
		sample := types.NewIndicatorValue(99, s.clock.Now())
		s.store.UpdateIndicator(symbol, sample)

		wg.Add(1)

		go func() {
			defer wg.Done()
			s.NoError(e.HandleIndicator(context.Background(), symbol, sample))
		}()
	}
	wg.Wait()

	s.Equal(1, s.store.OpenCount())
}

func (s *EngineTestSuite) TestRejectedLiveFillIsFlattened() {
	e := s.liveEngine()
	defer e.Stop()

	s.alerts.EXPECT().NextAlertNumber(gomock.Any()).Return(int64(6), nil)
	s.executor.EXPECT().OpenShort(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, order types.ShortOrder) (types.ShortFill, error) {
			// An operator cools the symbol down while the order is in flight.
			s.store.AddCooldown(order.Symbol, "Manual Add", s.clock.Now().Add(time.Hour))

			return types.ShortFill{Symbol: order.Symbol, EntryPrice: 2.0}, nil //nolint:exhaustruct // partial fill
		})
	s.executor.EXPECT().ClosePosition(gomock.Any(), "DOGEUSDT").Return(2.0, nil)

	s.signal(e, "DOGEUSDT", 97)

	s.False(s.store.IsOpen("DOGEUSDT"))
	s.Equal(0, e.LiveMonitorCount())
	s.Contains(s.store.AlertLog(1)[0].Message, "FLATTENED")
}

func (s *EngineTestSuite) TestLiveMonitorClosesOnIndicator() {
	e := s.liveEngine()
	defer e.Stop()

	s.alerts.EXPECT().NextAlertNumber(gomock.Any()).Return(int64(5), nil)
	s.executor.EXPECT().OpenShort(gomock.Any(), gomock.Any()).Return(types.ShortFill{Symbol: "DOGEUSDT", EntryPrice: 2.0}, nil) //nolint:exhaustruct // partial fill
	s.executor.EXPECT().LivePnL(gomock.Any(), "DOGEUSDT").Return(types.LivePnL{PnLUSDT: 0.5, PnLPercent: 16}, nil).MinTimes(1)
	s.executor.EXPECT().ClosePosition(gomock.Any(), "DOGEUSDT").Return(1.9, nil)

	s.store.UpdateIndicator("DOGEUSDT", types.NewIndicatorValue(97, s.clock.Now()))
	s.Require().NoError(e.HandleIndicator(context.Background(), "DOGEUSDT", types.NewIndicatorValue(97, s.clock.Now())))
	s.store.UpdateIndicator("DOGEUSDT", types.NewIndicatorValue(50, s.clock.Now()))

	s.Eventually(func() bool { return !s.store.IsOpen("DOGEUSDT") }, time.Second, 5*time.Millisecond)
	s.Eventually(func() bool { return e.LiveMonitorCount() == 0 }, time.Second, 5*time.Millisecond)
}

func (s *EngineTestSuite) TestScanLossesTripsBreaker() {
	e := s.paperEngine()
	since := s.clock.Now().Add(-24 * time.Hour)

	s.losses.EXPECT().CountLosses(gomock.Any(), since).Return(0, nil)
	tripped, err := e.ScanLosses(context.Background())
	s.NoError(err)
	s.False(tripped)

	s.losses.EXPECT().CountLosses(gomock.Any(), since).Return(1, nil)
	tripped, err = e.ScanLosses(context.Background())
	s.NoError(err)
	s.True(tripped)
	s.True(s.store.Controls().GlobalPauseActive)
	s.False(s.store.Controls().TradeExecutionEnabled)
	s.False(s.store.CanOpenNewTrade())

	s.losses.EXPECT().CountLosses(gomock.Any(), since).Return(2, nil)
	tripped, err = e.ScanLosses(context.Background())
	s.NoError(err)
	s.False(tripped)
}

func (s *EngineTestSuite) TestScanLossesPropagatesError() {
	e := s.paperEngine()
	s.losses.EXPECT().CountLosses(gomock.Any(), gomock.Any()).Return(0, errors.New(errors.ErrCodeQueryFailed, "ledger closed"))

	_, err := e.ScanLosses(context.Background())
	s.True(errors.HasCode(err, errors.ErrCodeQueryFailed))
	s.False(s.store.Controls().GlobalPauseActive)
}

func (s *EngineTestSuite) TestManualOpenAndClose() {
	e := s.paperEngine()
	s.alerts.EXPECT().NextAlertNumber(gomock.Any()).Return(int64(9), nil)
	s.store.UpdateIndicator("PEPEUSDT", types.NewIndicatorValue(80, s.clock.Now()))

	trade, err := e.ManualOpen(context.Background(), "PEPEUSDT", 0.5)
	s.Require().NoError(err)
	s.Equal(types.TradeSourceManual, trade.Source)
	s.Equal(40.0, trade.Change24h)
	s.Equal(optional.Some(80.0), trade.EntryIndicator)

	_, err = e.ManualOpen(context.Background(), "PEPEUSDT", 0.5)
	s.True(errors.HasCode(err, errors.ErrCodeTradeAlreadyOpen))

	closed, err := e.ManualClose("PEPEUSDT")
	s.Require().NoError(err)
	s.Equal(engine.ReasonManualClose, closed.Reason)
	s.Equal(0.5, closed.ClosePrice)

	_, err = e.ManualClose("PEPEUSDT")
	s.True(errors.HasCode(err, errors.ErrCodeTradeNotFound))
}

func (s *EngineTestSuite) TestManualCloseOfLiveTradeSkipsExchange() {
	e := s.paperEngine()
	s.store.RestoreTrade(types.ActiveTrade{ //nolint:exhaustruct // minimal live trade
		Symbol: "DOGEUSDT", AlertNumber: 2, EntryPrice: 2, EntryTime: s.clock.Now(), Amount: 5, Leverage: 2, Source: types.TradeSourceLive,
	})

	closed, err := e.ManualClose("DOGEUSDT")
	s.Require().NoError(err)
	s.Equal(engine.ReasonManualCloseLive, closed.Reason)
	s.Equal(0.0, closed.ClosePrice)
	s.Equal(1000.0, s.store.Portfolio().Balance)
}

func (s *EngineTestSuite) TestCloseAllClosesLivePositions() {
	e := s.liveEngine()
	defer e.Stop()

	s.store.RestoreTrade(types.ActiveTrade{ //nolint:exhaustruct // minimal live trade
		Symbol: "DOGEUSDT", AlertNumber: 2, EntryPrice: 2, EntryTime: s.clock.Now(), Amount: 5, Leverage: 2, Source: types.TradeSourceLive,
	})
	s.store.RestoreTrade(types.ActiveTrade{ //nolint:exhaustruct // minimal paper trade
		Symbol: "PEPEUSDT", AlertNumber: 3, EntryPrice: 0.5, EntryTime: s.clock.Now(), Amount: 3, Leverage: 2, Source: types.TradeSourceBot,
	})
	s.executor.EXPECT().ClosePosition(gomock.Any(), "DOGEUSDT").Return(1.95, nil)

	s.Equal(2, e.CloseAll(context.Background()))
	s.Equal(0, s.store.OpenCount())
}

func (s *EngineTestSuite) TestDiscardAll() {
	e := s.paperEngine()
	s.store.RestoreTrade(types.ActiveTrade{Symbol: "DOGEUSDT", EntryPrice: 2, Amount: 3, Leverage: 2, Source: types.TradeSourceBot})  //nolint:exhaustruct // minimal
	s.store.RestoreTrade(types.ActiveTrade{Symbol: "PEPEUSDT", EntryPrice: 0.5, Amount: 3, Leverage: 2, Source: types.TradeSourceBot}) //nolint:exhaustruct // minimal

	_, err := e.Discard("NOPEUSDT")
	s.True(errors.HasCode(err, errors.ErrCodeTradeNotFound))

	s.Equal(2, e.DiscardAll())
	s.Equal(0, s.store.OpenCount())
	s.Equal(types.GlobalStats{}, s.store.Stats())

	log := s.store.AlertLog(0)
	s.Require().Len(log, 2)
	s.Equal("DISCARD", log[0].Message)
	s.NotEqual(log[0].Symbol, log[1].Symbol)
}

func (s *EngineTestSuite) TestRefreshBalance() {
	_, err := s.paperEngine().RefreshBalance(context.Background())
	s.True(errors.HasCode(err, errors.ErrCodeLiveDisabled))

	e := s.liveEngine()
	defer e.Stop()

	s.executor.EXPECT().Balance(gomock.Any()).Return(321.5, nil)

	balance, err := e.RefreshBalance(context.Background())
	s.NoError(err)
	s.Equal(321.5, balance)
	s.Equal(321.5, s.store.Portfolio().Balance)
}

func (s *EngineTestSuite) TestSyncOpenPositions() {
	e := s.liveEngine()
	defer e.Stop()

	openedAt := s.clock.Now().Add(-time.Hour)

	s.executor.EXPECT().OpenPositions(gomock.Any()).Return([]types.ExchangePosition{
		{Symbol: "DOGEUSDT", Amount: -6, EntryPrice: 2.01, MarkPrice: 2.0, UnrealizedPnL: 0.06, InitialMargin: 6, Leverage: 2},
		{Symbol: "PEPEUSDT", Amount: -100, EntryPrice: 0.52, MarkPrice: 0.5, UnrealizedPnL: 2, InitialMargin: 26, Leverage: 2},
	}, nil)
	s.ledger.EXPECT().OpenTrades(gomock.Any()).Return(map[string]types.LedgerTrade{
		"DOGEUSDT": {AlertNumber: 42, OpenedAt: openedAt, Symbol: "DOGEUSDT", Status: types.TradeStatusOpen, Amount: 3, Leverage: 2, EntryRSI: optional.Some(96.5)}, //nolint:exhaustruct // partial row
	}, nil)
	s.alerts.EXPECT().NextAlertNumber(gomock.Any()).Return(int64(43), nil)
	s.executor.EXPECT().LivePnL(gomock.Any(), gomock.Any()).Return(types.LivePnL{PnLUSDT: 0.01, PnLPercent: 0.1}, nil).AnyTimes()

	adopted, err := e.SyncOpenPositions(context.Background())
	s.Require().NoError(err)
	s.Equal(2, adopted)

	restored, ok := s.store.Trade("DOGEUSDT")
	s.Require().True(ok)
	s.Equal(int64(42), restored.AlertNumber)
	s.Equal(openedAt, restored.EntryTime)
	s.Equal(3.0, restored.Amount)
	s.Equal(2.01, restored.EntryPrice)

	external, ok := s.store.Trade("PEPEUSDT")
	s.Require().True(ok)
	s.Equal(int64(43), external.AlertNumber)
	s.Equal(26.0, external.Amount)
	s.Equal(types.TradeSourceLive, external.Source)

	s.Eventually(func() bool { return e.LiveMonitorCount() == 2 }, time.Second, 5*time.Millisecond)
}

func (s *EngineTestSuite) TestSyncWithoutExecutorDoesNothing() {
	adopted, err := s.paperEngine().SyncOpenPositions(context.Background())
	s.NoError(err)
	s.Equal(0, adopted)
}

func (s *EngineTestSuite) TestRunStopsWithContext() {
	e := s.paperEngine()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(time.Second):
		s.Fail("engine did not stop")
	}
}
