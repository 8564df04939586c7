// Package state holds the single in-memory model of the bot: market data, indicator samples,
// open trades, cooldowns, portfolio, stats and control flags.
//
// One mutex guards everything. Exported methods take the lock; helpers with the Locked suffix
// expect it to be held. Getters return copies. Events are published after the lock is released.
package state

import (
	"sort"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-shortbot/internal/config"
	"github.com/rxtech-lab/argo-shortbot/internal/logger"
	"github.com/rxtech-lab/argo-shortbot/internal/types"
)

// Publisher is the part of the event bus the store needs.
type Publisher interface {
	Publish(eventType types.EventType, payload any)
}

// SettingsProvider returns the current trading parameters.
type SettingsProvider interface {
	Trading() config.TradingConfig
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithBalance seeds the paper balance.
func WithBalance(balance float64) Option {
	return func(s *Store) {
		s.portfolio.Balance = balance
	}
}

type pendingEvent struct {
	eventType types.EventType
	payload   any
}

// Store is the state store.
type Store struct {
	mu sync.Mutex

	coins        map[string]types.CoinSnapshot
	listingTimes map[string]time.Time
	indicators   map[string]types.IndicatorSample
	peaks        map[string]types.PeakEntry
	trades       map[string]types.ActiveTrade
	cooldowns    map[string]types.CooldownEntry
	reservations map[string]float64

	portfolio       types.Portfolio
	stats           types.GlobalStats
	controls        types.ControlFlags
	alertLog        []types.AlertLogEntry
	indicatorStatus types.IndicatorSweepStatus

	lastOpen    time.Time
	pausedUntil time.Time
	pauseTimer  *time.Timer

	startedAt    time.Time
	uptimeBefore time.Duration

	settings  SettingsProvider
	publisher Publisher
	logger    *logger.Logger
	now       func() time.Time
}

// New creates an empty store with default control flags.
func New(settings SettingsProvider, publisher Publisher, log *logger.Logger, opts ...Option) *Store {
	s := &Store{
		mu:              sync.Mutex{},
		coins:           make(map[string]types.CoinSnapshot),
		listingTimes:    make(map[string]time.Time),
		indicators:      make(map[string]types.IndicatorSample),
		peaks:           make(map[string]types.PeakEntry),
		trades:          make(map[string]types.ActiveTrade),
		cooldowns:       make(map[string]types.CooldownEntry),
		reservations:    make(map[string]float64),
		portfolio:       types.Portfolio{Balance: 0},
		stats:           types.GlobalStats{}, //nolint:exhaustruct // zero stats
		controls:        types.DefaultControlFlags(),
		alertLog:        make([]types.AlertLogEntry, 0, types.AlertLogCapacity),
		indicatorStatus: types.IndicatorSweepStatus{Status: "initializing", Message: "Waiting for initial data", CurrentSymbol: ""},
		lastOpen:        time.Time{},
		pausedUntil:     time.Time{},
		pauseTimer:      nil,
		startedAt:       time.Time{},
		uptimeBefore:    0,
		settings:        settings,
		publisher:       publisher,
		logger:          log,
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.startedAt = s.now()

	return s
}

func (s *Store) publish(events ...pendingEvent) {
	for _, e := range events {
		s.publisher.Publish(e.eventType, e.payload)
	}
}

// addAlertLogLocked prepends a line and trims the log to its capacity.
func (s *Store) addAlertLogLocked(symbol, message string) {
	entry := types.AlertLogEntry{Time: s.now(), Symbol: symbol, Message: message}

	s.alertLog = append([]types.AlertLogEntry{entry}, s.alertLog...)
	if len(s.alertLog) > types.AlertLogCapacity {
		s.alertLog = s.alertLog[:types.AlertLogCapacity]
	}
}

// AddAlertLog records a human readable line, newest first.
func (s *Store) AddAlertLog(symbol, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addAlertLogLocked(symbol, message)
}

// AlertLog returns at most n entries, newest first. n <= 0 returns all.
func (s *Store) AlertLog(n int) []types.AlertLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || n > len(s.alertLog) {
		n = len(s.alertLog)
	}

	return append([]types.AlertLogEntry(nil), s.alertLog[:n]...)
}

// SetIndicatorStatus records what the indicator sampler is doing.
func (s *Store) SetIndicatorStatus(status, message, currentSymbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.indicatorStatus = types.IndicatorSweepStatus{Status: status, Message: message, CurrentSymbol: currentSymbol}
}

// SetUptimeBefore restores the uptime accumulated by earlier runs.
func (s *Store) SetUptimeBefore(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.uptimeBefore = d
}

// Uptime is the total running time across restarts.
func (s *Store) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.uptimeLocked()
}

func (s *Store) uptimeLocked() time.Duration {
	return s.uptimeBefore + s.now().Sub(s.startedAt)
}

func cloneOption[T any](o optional.Option[T]) optional.Option[T] {
	if o.IsNone() {
		return optional.None[T]()
	}

	return optional.Some(o.Unwrap())
}

func cloneTrade(t types.ActiveTrade) types.ActiveTrade {
	t.EntryIndicator = cloneOption(t.EntryIndicator)

	return t
}

// Snapshot returns a deep copy of the whole state.
func (s *Store) Snapshot() types.StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	coins := make([]types.CoinSnapshot, 0, len(s.coins))
	for _, c := range s.coins {
		coins = append(coins, c)
	}

	sort.Slice(coins, func(i, j int) bool { return coins[i].Change24h > coins[j].Change24h })

	indicators := make(map[string]types.IndicatorSample, len(s.indicators))
	for k, v := range s.indicators {
		indicators[k] = v
	}

	return types.StateSnapshot{
		Time:            s.now(),
		Coins:           coins,
		Indicators:      indicators,
		Trades:          s.tradesLocked(),
		Cooldowns:       s.cooldownsLocked(),
		Portfolio:       s.portfolio,
		AvailableMargin: s.availableLocked(),
		Stats:           s.stats,
		Controls:        s.controls,
		PausedUntil:     s.pausedUntil,
		AlertLog:        append([]types.AlertLogEntry(nil), s.alertLog...),
		IndicatorStatus: s.indicatorStatus,
		Uptime:          s.uptimeLocked(),
	}
}

// Coin returns the latest snapshot of a symbol.
func (s *Store) Coin(symbol string) (types.CoinSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.coins[symbol]

	return c, ok
}

// Indicator returns the latest sample of a symbol.
func (s *Store) Indicator(symbol string) (types.IndicatorSample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.indicators[symbol]

	return v, ok
}

// Peak returns the peak tracker entry of a symbol.
func (s *Store) Peak(symbol string) (types.PeakEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.peaks[symbol]

	return p, ok
}

// Peaks returns a copy of the whole peak tracker.
func (s *Store) Peaks() map[string]types.PeakEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]types.PeakEntry, len(s.peaks))
	for k, v := range s.peaks {
		out[k] = v
	}

	return out
}

// RestorePeaks replaces the peak tracker with persisted entries.
func (s *Store) RestorePeaks(peaks map[string]types.PeakEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.peaks = make(map[string]types.PeakEntry, len(peaks))
	for k, v := range peaks {
		s.peaks[k] = v
	}
}

// Portfolio returns the portfolio.
func (s *Store) Portfolio() types.Portfolio {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.portfolio
}

// Stats returns the global stats.
func (s *Store) Stats() types.GlobalStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stats
}

// Controls returns the control flags.
func (s *Store) Controls() types.ControlFlags {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.controls
}

// SetBalance overwrites the paper balance. Administrative action.
func (s *Store) SetBalance(balance float64) {
	s.mu.Lock()
	s.portfolio.Balance = balance
	s.addAlertLogLocked("PORTFOLIO", "Balance set by operator")
	s.mu.Unlock()

	s.publish(pendingEvent{types.EventPortfolioUpdated, types.PortfolioUpdatedPayload{Balance: balance}})
}

// RestoreStats loads persisted global stats without publishing.
func (s *Store) RestoreStats(stats types.GlobalStats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats = stats
}

// RestorePortfolio loads a persisted portfolio without publishing.
func (s *Store) RestorePortfolio(p types.Portfolio) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.portfolio = p
}

// ResetStats zeroes the global stats. Administrative action.
func (s *Store) ResetStats() {
	s.mu.Lock()
	s.stats = types.GlobalStats{} //nolint:exhaustruct // reset
	stats := s.stats
	s.addAlertLogLocked("STATS", "Global stats reset by operator")
	s.mu.Unlock()

	s.publish(pendingEvent{types.EventStatsUpdated, types.StatsUpdatedPayload{Stats: stats}})
}
