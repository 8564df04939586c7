// Package stats keeps daily and cumulative statistics of the trades closed in this session.
package stats

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-shortbot/internal/eventbus"
	"github.com/rxtech-lab/argo-shortbot/internal/logger"
	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// Bus is the part of the event bus the tracker registers on.
type Bus interface {
	Subscribe(eventType types.EventType, handler eventbus.Handler)
}

// accumulator holds running statistics for closed trades.
type accumulator struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	RealizedPnL   float64
	UnrealizedPnL float64
	MaxProfit     float64
	MaxLoss       float64
	MaxDrawdown   float64
	PeakPnL       float64
	HoldingTimes  []int // in seconds
	Symbols       map[string]struct{}
	Reasons       map[string]int
}

func newAccumulator() *accumulator {
	return &accumulator{
		TotalTrades:   0,
		WinningTrades: 0,
		LosingTrades:  0,
		RealizedPnL:   0,
		UnrealizedPnL: 0,
		MaxProfit:     0,
		MaxLoss:       0,
		MaxDrawdown:   0,
		PeakPnL:       0,
		HoldingTimes:  make([]int, 0),
		Symbols:       make(map[string]struct{}),
		Reasons:       make(map[string]int),
	}
}

// Tracker tracks session statistics and writes them to a YAML file after every close.
type Tracker struct {
	runID        string
	sessionStart time.Time
	currentDate  string

	// Daily accumulators (reset on date boundary)
	daily *accumulator

	// Cumulative accumulators (from session start)
	cumulative *accumulator

	outputPath string
	now        func() time.Time

	mu     sync.Mutex
	logger *logger.Logger
}

// NewTracker creates a tracker for a session starting now. An empty outputPath disables the file.
func NewTracker(outputPath string, log *logger.Logger, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}

	start := now()

	return &Tracker{
		runID:        uuid.New().String(),
		sessionStart: start,
		currentDate:  start.Format(dateLayout),
		daily:        newAccumulator(),
		cumulative:   newAccumulator(),
		outputPath:   outputPath,
		now:          now,
		mu:           sync.Mutex{},
		logger:       log,
	}
}

// Register subscribes to trade-closed.
func (t *Tracker) Register(bus Bus) {
	bus.Subscribe(types.EventTradeClosed, t.onTradeClosed)
}

func (t *Tracker) onTradeClosed(_ context.Context, event eventbus.Event) error {
	payload, ok := event.Payload.(types.TradeClosedPayload)
	if !ok {
		return nil
	}

	t.RecordClosed(payload.Closed)

	return t.WriteStatsYAML()
}

// RecordClosed adds a closed trade to the daily and cumulative statistics.
// Daily statistics are reset first when the trade closed on a later date.
func (t *Tracker) RecordClosed(closed types.ClosedTrade) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if date := closed.ExitTime.Format(dateLayout); date > t.currentDate {
		t.handleDateBoundaryLocked(date)
	}

	t.updateAccumulator(t.daily, closed)
	t.updateAccumulator(t.cumulative, closed)

	t.logger.Debug("Trade recorded",
		zap.String("symbol", closed.Trade.Symbol),
		zap.Float64("pnl", closed.Trade.PnLUSDT),
		zap.Int("total_trades", t.cumulative.TotalTrades),
	)
}

func (t *Tracker) updateAccumulator(acc *accumulator, closed types.ClosedTrade) {
	pnl := closed.Trade.PnLUSDT

	acc.TotalTrades++
	acc.RealizedPnL += pnl
	acc.Symbols[closed.Trade.Symbol] = struct{}{}
	acc.Reasons[closed.Reason]++

	if pnl > 0 {
		acc.WinningTrades++
	} else if pnl < 0 {
		acc.LosingTrades++
	}

	if pnl > acc.MaxProfit {
		acc.MaxProfit = pnl
	}

	if pnl < acc.MaxLoss {
		acc.MaxLoss = pnl
	}

	if acc.RealizedPnL > acc.PeakPnL {
		acc.PeakPnL = acc.RealizedPnL
	}

	drawdown := acc.PeakPnL - acc.RealizedPnL
	if drawdown > acc.MaxDrawdown {
		acc.MaxDrawdown = drawdown
	}

	if !closed.Trade.EntryTime.IsZero() && !closed.ExitTime.IsZero() {
		holding := int(closed.Duration().Seconds())
		if holding > 0 {
			acc.HoldingTimes = append(acc.HoldingTimes, holding)
		}
	}
}

// SetUnrealizedPnL updates the unrealized pnl of the positions still open.
func (t *Tracker) SetUnrealizedPnL(pnl float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.daily.UnrealizedPnL = pnl
	t.cumulative.UnrealizedPnL = pnl
}

// Refresh sets the unrealized pnl and rolls the daily statistics over when the date has changed.
func (t *Tracker) Refresh(unrealized float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if date := t.now().Format(dateLayout); date > t.currentDate {
		t.handleDateBoundaryLocked(date)
	}

	t.daily.UnrealizedPnL = unrealized
	t.cumulative.UnrealizedPnL = unrealized
}

// HandleDateBoundary resets daily statistics while keeping cumulative ones.
func (t *Tracker) HandleDateBoundary(newDate string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.handleDateBoundaryLocked(newDate)
}

func (t *Tracker) handleDateBoundaryLocked(newDate string) {
	oldDate := t.currentDate
	t.currentDate = newDate
	unrealized := t.daily.UnrealizedPnL
	t.daily = newAccumulator()
	t.daily.UnrealizedPnL = unrealized

	t.logger.Info("Date boundary handled, daily stats reset",
		zap.String("old_date", oldDate),
		zap.String("new_date", newDate),
	)
}

// Snapshot returns daily and cumulative statistics.
func (t *Tracker) Snapshot() types.DailySessionStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return types.DailySessionStats{
		Daily:      t.build(t.daily, t.currentDate),
		Cumulative: t.build(t.cumulative, t.sessionStart.Format(dateLayout)),
	}
}

func (t *Tracker) build(acc *accumulator, date string) types.SessionStats {
	winRate := 0.0
	if acc.TotalTrades > 0 {
		winRate = float64(acc.WinningTrades) / float64(acc.TotalTrades)
	}

	holdingTime := types.TradeHoldingTime{
		Min: 0,
		Max: 0,
		Avg: 0,
	}

	if len(acc.HoldingTimes) > 0 {
		minTime := acc.HoldingTimes[0]
		maxTime := acc.HoldingTimes[0]
		totalTime := 0

		for _, h := range acc.HoldingTimes {
			totalTime += h
			minTime = min(minTime, h)
			maxTime = max(maxTime, h)
		}

		holdingTime.Min = minTime
		holdingTime.Max = maxTime
		holdingTime.Avg = totalTime / len(acc.HoldingTimes)
	}

	symbols := make([]string, 0, len(acc.Symbols))
	for s := range acc.Symbols {
		symbols = append(symbols, s)
	}

	sort.Strings(symbols)

	reasons := make(map[string]int, len(acc.Reasons))
	for k, v := range acc.Reasons {
		reasons[k] = v
	}

	return types.SessionStats{
		ID:           t.runID,
		Date:         date,
		SessionStart: t.sessionStart,
		LastUpdated:  t.now(),
		Symbols:      symbols,
		CloseReasons: reasons,
		TradeResult: types.TradeResult{
			NumberOfTrades:        acc.TotalTrades,
			NumberOfWinningTrades: acc.WinningTrades,
			NumberOfLosingTrades:  acc.LosingTrades,
			WinRate:               winRate,
			MaxDrawdown:           acc.MaxDrawdown,
		},
		TradePnl: types.TradePnl{
			RealizedPnL:   acc.RealizedPnL,
			UnrealizedPnL: acc.UnrealizedPnL,
			TotalPnL:      acc.RealizedPnL + acc.UnrealizedPnL,
			MaximumLoss:   acc.MaxLoss,
			MaximumProfit: acc.MaxProfit,
		},
		TradeHoldingTime: holdingTime,
	}
}

// WriteStatsYAML writes daily and cumulative statistics to the output file.
func (t *Tracker) WriteStatsYAML() error {
	if t.outputPath == "" {
		return nil
	}

	return types.WriteSessionStats(t.outputPath, t.Snapshot())
}

// RunID returns the session id.
func (t *Tracker) RunID() string {
	return t.runID
}
