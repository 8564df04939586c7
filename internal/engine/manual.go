package engine

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	"go.uber.org/zap"
)

// Close reasons used by operator actions.
const (
	ReasonManualClose     = "Manual Close"
	ReasonManualCloseLive = "Manual Close (Live)"
	ReasonMasterCloseAll  = "Master Close All"
	ReasonManualCooldown  = "Manual Add"
)

// ManualOpen opens a paper short at the given price on behalf of an operator.
func (e *Engine) ManualOpen(ctx context.Context, symbol string, price float64) (types.ActiveTrade, error) {
	if symbol == "" {
		return types.ActiveTrade{}, errors.New(errors.ErrCodeMissingParameter, "symbol is required") //nolint:exhaustruct // failure
	}

	if price <= 0 {
		return types.ActiveTrade{}, errors.Newf(errors.ErrCodeInvalidParameter, "invalid price %v", price) //nolint:exhaustruct // failure
	}

	if e.store.IsOpen(symbol) {
		return types.ActiveTrade{}, errors.Newf(errors.ErrCodeTradeAlreadyOpen, "already in trade for %s", symbol) //nolint:exhaustruct // failure
	}

	change := 0.0
	if coin, ok := e.store.Coin(symbol); ok {
		change = coin.Change24h
	}

	alert, err := e.alerts.NextAlertNumber(ctx)
	if err != nil {
		return types.ActiveTrade{}, err //nolint:exhaustruct // failure
	}

	indicator := e.indicatorValue(symbol)

	return e.store.OpenTrade(types.OpenTradeRequest{
		Symbol:      symbol,
		Price:       price,
		Indicator:   indicator,
		Change24h:   change,
		Source:      types.TradeSourceManual,
		AlertNumber: alert,
		Amount:      optional.None[float64](),
		LogMessage:  optional.None[string](),
	})
}

// ManualClose closes one trade on behalf of an operator. A live trade is only marked closed;
// the position itself must be closed on the exchange.
func (e *Engine) ManualClose(symbol string) (types.ClosedTrade, error) {
	trade, ok := e.store.Trade(symbol)
	if !ok {
		return types.ClosedTrade{}, errors.Newf(errors.ErrCodeTradeNotFound, "trade not found for %s", symbol) //nolint:exhaustruct // failure
	}

	if trade.Source.IsLive() {
		e.logger.Warn("Live trade marked closed by operator, verify the position on the exchange", zap.String("symbol", symbol))

		return e.closeOrNotFound(symbol, ReasonManualCloseLive, 0, optional.Some(0.0))
	}

	price, indicator := e.exitQuote(trade)

	return e.closeOrNotFound(symbol, ReasonManualClose, price, indicator)
}

// CloseAll closes every open trade. Live positions are closed on the exchange first.
// It returns how many trades were closed.
func (e *Engine) CloseAll(ctx context.Context) int {
	closed := 0

	for _, trade := range e.store.Trades() {
		if trade.Source.IsLive() {
			price := 0.0

			if e.LiveEnabled() {
				closeCtx, cancel := context.WithTimeout(ctx, orderTimeout)
				p, err := e.executor.ClosePosition(closeCtx, trade.Symbol)
				cancel()

				if err != nil {
					e.logger.Error("Live close failed", zap.String("symbol", trade.Symbol), zap.Error(err))
				} else {
					price = p
				}
			}

			if _, ok := e.store.CloseTrade(trade.Symbol, ReasonMasterCloseAll, price, optional.Some(0.0)); ok {
				closed++
			}

			continue
		}

		price, indicator := e.exitQuote(trade)
		if _, ok := e.store.CloseTrade(trade.Symbol, ReasonMasterCloseAll, price, indicator); ok {
			closed++
		}
	}

	return closed
}

// Discard drops one trade without realizing its pnl.
func (e *Engine) Discard(symbol string) (types.ActiveTrade, error) {
	trade, ok := e.store.DiscardTrade(symbol)
	if !ok {
		return types.ActiveTrade{}, errors.Newf(errors.ErrCodeTradeNotFound, "trade not found for %s", symbol) //nolint:exhaustruct // failure
	}

	return trade, nil
}

// DiscardAll drops every open trade and returns how many were dropped.
func (e *Engine) DiscardAll() int {
	discarded := 0

	for _, trade := range e.store.Trades() {
		if _, err := e.Discard(trade.Symbol); err == nil {
			discarded++
		}
	}

	return discarded
}

// SetCooldown puts a symbol on cooldown for the given number of hours.
func (e *Engine) SetCooldown(symbol string, hours float64) (types.CooldownEntry, error) {
	if symbol == "" || hours <= 0 {
		return types.CooldownEntry{}, errors.New(errors.ErrCodeInvalidParameter, "invalid symbol or duration") //nolint:exhaustruct // failure
	}

	expiry := e.now().Add(hoursToDuration(hours))

	return e.store.AddCooldown(symbol, ReasonManualCooldown, expiry), nil
}

// RefreshBalance replaces the balance with the available balance of the futures wallet.
func (e *Engine) RefreshBalance(ctx context.Context) (float64, error) {
	if !e.LiveEnabled() {
		return 0, errors.New(errors.ErrCodeLiveDisabled, "live trading is disabled")
	}

	balance, err := e.executor.Balance(ctx)
	if err != nil {
		return 0, err
	}

	e.store.SetBalance(balance)

	return balance, nil
}

// exitQuote is the price and indicator a paper trade is closed at outside the exit rules.
func (e *Engine) exitQuote(trade types.ActiveTrade) (float64, optional.Option[float64]) {
	price := trade.EntryPrice
	if coin, ok := e.store.Coin(trade.Symbol); ok && coin.Price > 0 {
		price = coin.Price
	}

	indicator := e.indicatorValue(trade.Symbol)
	if indicator.IsNone() {
		indicator = optional.Some(0.0)
	}

	return price, indicator
}

func (e *Engine) closeOrNotFound(symbol, reason string, price float64, indicator optional.Option[float64]) (types.ClosedTrade, error) {
	closed, ok := e.store.CloseTrade(symbol, reason, price, indicator)
	if !ok {
		return types.ClosedTrade{}, errors.Newf(errors.ErrCodeTradeNotFound, "trade not found for %s", symbol) //nolint:exhaustruct // failure
	}

	return closed, nil
}

func hoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}
