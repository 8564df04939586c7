package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-shortbot/internal/utils"
	"go.uber.org/zap"
)

// TakeProfitReason is the close reason of a paper trade that reached its target.
func TakeProfitReason(percent float64) string {
	return fmt.Sprintf("Target Profit (>%v%%)", percent)
}

// IndicatorCloseReason is the close reason of a trade closed on the indicator rule.
func IndicatorCloseReason(threshold float64) string {
	return fmt.Sprintf("RSI Close (<%v)", threshold)
}

// SweepPaperTrades refreshes pnl of every paper trade and closes those that hit an exit rule.
// Nothing happens while trading is disabled. Exits are held back while the global pause is active.
func (e *Engine) SweepPaperTrades() int {
	controls := e.store.Controls()
	if !controls.TradingEnabled {
		return 0
	}

	trading := e.settings.Trading()
	closed := 0

	for _, trade := range e.store.Trades() {
		if trade.Source.IsLive() {
			continue
		}

		coin, ok := e.store.Coin(trade.Symbol)
		if !ok || coin.Price <= 0 {
			continue
		}

		pnlPercent, pnlUSDT := utils.ShortPnL(trade.EntryPrice, coin.Price, trade.Amount, trade.Leverage)
		indicator := e.indicatorValue(trade.Symbol)

		e.store.UpdateTradePnL(trade.Symbol, pnlPercent, pnlUSDT, indicator)

		if controls.GlobalPauseActive {
			continue
		}

		if pnlPercent >= trading.TakeProfitPercent {
			if _, ok := e.store.CloseTrade(trade.Symbol, TakeProfitReason(trading.TakeProfitPercent), coin.Price, indicator); ok {
				closed++
			}

			continue
		}

		if v, err := indicator.Take(); err == nil && v <= trading.CloseThreshold && pnlUSDT > 0 {
			if _, ok := e.store.CloseTrade(trade.Symbol, IndicatorCloseReason(trading.CloseThreshold), coin.Price, indicator); ok {
				closed++
			}
		}
	}

	return closed
}

// startLiveMonitor starts the monitor of a live trade unless one is already running.
func (e *Engine) startLiveMonitor(symbol string) {
	e.monitorsMu.Lock()
	defer e.monitorsMu.Unlock()

	if _, ok := e.monitors[symbol]; ok {
		return
	}

	if e.lifetime.Err() != nil {
		return
	}

	e.monitors[symbol] = struct{}{}
	e.wg.Add(1)

	go func() {
		defer e.wg.Done()
		defer func() {
			e.monitorsMu.Lock()
			delete(e.monitors, symbol)
			e.monitorsMu.Unlock()
		}()

		e.logger.Info("Started live monitor", zap.String("symbol", symbol))
		e.monitorLive(e.lifetime, symbol)
		e.logger.Info("Stopped live monitor", zap.String("symbol", symbol))
	}()
}

// LiveMonitorCount returns the number of running live monitors.
func (e *Engine) LiveMonitorCount() int {
	e.monitorsMu.Lock()
	defer e.monitorsMu.Unlock()

	return len(e.monitors)
}

// monitorLive polls one live trade until it is no longer open or ctx ends.
func (e *Engine) monitorLive(ctx context.Context, symbol string) {
	ticker := time.NewTicker(e.intervals.LiveMonitor)
	defer ticker.Stop()

	for {
		if done := e.checkLive(ctx, symbol); done {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// checkLive runs one monitor tick and reports whether the monitor should stop.
func (e *Engine) checkLive(ctx context.Context, symbol string) (done bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Live monitor panicked", zap.String("symbol", symbol), zap.Any("panic", r))
			done = false
		}
	}()

	trade, ok := e.store.Trade(symbol)
	if !ok || !trade.Source.IsLive() {
		return true
	}

	pnl, err := e.executor.LivePnL(ctx, symbol)
	if err != nil {
		e.logger.Warn("Could not fetch live pnl", zap.String("symbol", symbol), zap.Error(err))

		return false
	}

	indicator := e.indicatorValue(symbol)
	e.store.UpdateTradePnL(symbol, pnl.PnLPercent, pnl.PnLUSDT, indicator)

	threshold := e.settings.Trading().CloseThreshold

	v, err := indicator.Take()
	if err != nil || v > threshold || pnl.PnLUSDT <= liveMinProfit {
		return false
	}

	e.logger.Info("Closing live trade on indicator",
		zap.String("symbol", symbol), zap.Float64("indicator", v), zap.Float64("pnl_usdt", pnl.PnLUSDT))

	closeCtx, cancel := context.WithTimeout(ctx, orderTimeout)
	defer cancel()

	price, err := e.executor.ClosePosition(closeCtx, symbol)
	if err != nil {
		e.logger.Error("Live close failed", zap.String("symbol", symbol), zap.Error(err))

		return false
	}

	e.store.CloseTrade(symbol, IndicatorCloseReason(threshold), price, optional.Some(v))

	return true
}
