// Package engine decides when to open shorts and when to close them.
//
// Entries react to indicator-updated events. Exits are polled: paper trades by one sweep on a
// fixed tick, live trades by one monitor goroutine per symbol. The loss breaker is a separate
// scan driven by the scheduler.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-shortbot/internal/config"
	"github.com/rxtech-lab/argo-shortbot/internal/logger"
	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"go.uber.org/zap"
)

// OrderExecutor places live orders. It is nil when live trading is off.
type OrderExecutor interface {
	OpenShort(ctx context.Context, order types.ShortOrder) (types.ShortFill, error)
	ClosePosition(ctx context.Context, symbol string) (float64, error)
	LivePnL(ctx context.Context, symbol string) (types.LivePnL, error)
	Balance(ctx context.Context) (float64, error)
	OpenPositions(ctx context.Context) ([]types.ExchangePosition, error)
}

// AlertCounter hands out trade numbers.
type AlertCounter interface {
	NextAlertNumber(ctx context.Context) (int64, error)
}

// LossScanner counts losing trades closed since a point in time.
type LossScanner interface {
	CountLosses(ctx context.Context, since time.Time) (int, error)
}

// LedgerReader returns the trades the ledger still has open, keyed by symbol.
type LedgerReader interface {
	OpenTrades(ctx context.Context) (map[string]types.LedgerTrade, error)
}

// SettingsProvider returns the current trading parameters.
type SettingsProvider interface {
	Trading() config.TradingConfig
}

// Store is the part of the state store the engine drives.
type Store interface {
	Coin(symbol string) (types.CoinSnapshot, bool)
	Indicator(symbol string) (types.IndicatorSample, bool)
	Portfolio() types.Portfolio
	Controls() types.ControlFlags

	IsOpen(symbol string) bool
	IsOnCooldown(symbol string) bool
	CanOpenNewTrade() bool

	Trade(symbol string) (types.ActiveTrade, bool)
	Trades() []types.ActiveTrade

	ReserveMargin(symbol string, amount float64) error
	ReleaseMargin(symbol string)
	OpenTrade(req types.OpenTradeRequest) (types.ActiveTrade, error)
	RestoreTrade(trade types.ActiveTrade) bool
	CloseTrade(symbol, reason string, closePrice float64, exitIndicator optional.Option[float64]) (types.ClosedTrade, bool)
	DiscardTrade(symbol string) (types.ActiveTrade, bool)
	UpdateTradePnL(symbol string, pnlPercent, pnlUSDT float64, indicator optional.Option[float64]) bool

	AddCooldown(symbol, reason string, expiry time.Time) types.CooldownEntry
	AddAlertLog(symbol, message string)
	ActivateGlobalPause(lossCount int) bool
	SetBalance(balance float64)
}

// Option configures an Engine.
type Option func(*Engine)

// WithExecutor turns on live trading.
func WithExecutor(executor OrderExecutor) Option {
	return func(e *Engine) {
		e.executor = executor
	}
}

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

const (
	orderTimeout = 30 * time.Second
	// Live positions are closed on the indicator rule only above this profit.
	liveMinProfit = 0.01
)

// Engine is the trading engine.
type Engine struct {
	store     Store
	settings  SettingsProvider
	executor  OrderExecutor
	alerts    AlertCounter
	losses    LossScanner
	ledger    LedgerReader
	intervals config.IntervalConfig
	logger    *logger.Logger
	now       func() time.Time

	// lifetime bounds every live monitor. It ends when Run returns or Stop is called.
	lifetime context.Context
	stop     context.CancelFunc

	monitorsMu sync.Mutex
	monitors   map[string]struct{}
	wg         sync.WaitGroup

	balanceShortLogged atomic.Bool
}

// New creates an engine. Without WithExecutor every entry is a paper trade.
func New(
	store Store,
	settings SettingsProvider,
	alerts AlertCounter,
	losses LossScanner,
	ledger LedgerReader,
	intervals config.IntervalConfig,
	log *logger.Logger,
	opts ...Option,
) *Engine {
	lifetime, stop := context.WithCancel(context.Background())

	e := &Engine{
		store:              store,
		settings:           settings,
		executor:           nil,
		alerts:             alerts,
		losses:             losses,
		ledger:             ledger,
		intervals:          intervals,
		logger:             log,
		now:                time.Now,
		lifetime:           lifetime,
		stop:               stop,
		monitorsMu:         sync.Mutex{},
		monitors:           make(map[string]struct{}),
		wg:                 sync.WaitGroup{},
		balanceShortLogged: atomic.Bool{},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// LiveEnabled reports whether entries go to the exchange.
func (e *Engine) LiveEnabled() bool {
	return e.executor != nil
}

// Run sweeps paper trades until ctx is done, then stops the live monitors and waits for them.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("Trading engine started", zap.Bool("live", e.LiveEnabled()))

	ticker := time.NewTicker(e.intervals.PaperMonitor)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.Stop()

			return nil
		case <-e.lifetime.Done():
			e.Stop()

			return nil
		case <-ticker.C:
			e.safeSweep()
		}
	}
}

// Stop ends every live monitor and waits for them to return.
func (e *Engine) Stop() {
	e.stop()
	e.wg.Wait()
}

func (e *Engine) safeSweep() {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Paper monitor panicked", zap.Any("panic", r))
		}
	}()

	e.SweepPaperTrades()
}

// indicatorValue returns the numeric indicator of a symbol, if any.
func (e *Engine) indicatorValue(symbol string) optional.Option[float64] {
	sample, ok := e.store.Indicator(symbol)
	if !ok {
		return optional.None[float64]()
	}

	if v, ok := sample.Numeric(); ok {
		return optional.Some(v)
	}

	return optional.None[float64]()
}
