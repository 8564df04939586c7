package engine

import (
	"context"
	"fmt"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-shortbot/internal/eventbus"
	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	"go.uber.org/zap"
)

// OnIndicatorUpdated is the event bus handler for indicator-updated.
func (e *Engine) OnIndicatorUpdated(ctx context.Context, event eventbus.Event) error {
	payload, ok := event.Payload.(types.IndicatorUpdatedPayload)
	if !ok {
		return errors.Newf(errors.ErrCodeInvalidParameter, "unexpected payload %T for %s", event.Payload, event.Type)
	}

	return e.HandleIndicator(ctx, payload.Symbol, payload.Sample)
}

// HandleIndicator opens a short when the sample makes the symbol eligible.
// Ineligible samples and lost races are not errors.
func (e *Engine) HandleIndicator(ctx context.Context, symbol string, sample types.IndicatorSample) error {
	value, ok := sample.Numeric()
	if !ok {
		return nil
	}

	trading := e.settings.Trading()
	if value <= trading.AlertThreshold {
		return nil
	}

	if e.store.IsOpen(symbol) || e.store.IsOnCooldown(symbol) {
		return nil
	}

	coin, ok := e.store.Coin(symbol)
	if !ok {
		return nil
	}

	if !e.store.CanOpenNewTrade() {
		return nil
	}

	amount := trading.ResolveAmount(e.store.Portfolio().Balance)
	required := max(amount, trading.MinMargin)

	if err := e.store.ReserveMargin(symbol, required); err != nil {
		if errors.HasCode(err, errors.ErrCodeInsufficientBalance) {
			if e.balanceShortLogged.CompareAndSwap(false, true) {
				e.logger.Warn("Skipping trade: insufficient balance",
					zap.String("symbol", symbol),
					zap.Float64("balance", e.store.Portfolio().Balance),
					zap.Float64("required", required),
				)
			}

			return nil
		}

		if errors.IsBenignRace(err) || errors.HasCode(err, errors.ErrCodeMaxOpenTrades) ||
			errors.HasCode(err, errors.ErrCodeOpenRateLimited) {
			e.logger.Debug("Entry slot not available", zap.String("symbol", symbol), zap.Error(err))

			return nil
		}

		return err
	}
	defer e.store.ReleaseMargin(symbol)

	e.balanceShortLogged.Store(false)

	message := fmt.Sprintf("RSI: %.2f", value)
	e.logger.Info("Fresh trade candidate", zap.String("symbol", symbol), zap.String("signal", message))

	alert, err := e.alerts.NextAlertNumber(ctx)
	if err != nil {
		e.logger.Error("Could not allocate alert number", zap.String("symbol", symbol), zap.Error(err))

		return err
	}

	req := types.OpenTradeRequest{
		Symbol:      symbol,
		Price:       coin.Price,
		Indicator:   optional.Some(value),
		Change24h:   coin.Change24h,
		Source:      types.TradeSourceBot,
		AlertNumber: alert,
		Amount:      optional.Some(amount),
		LogMessage:  optional.Some(message),
	}

	if e.LiveEnabled() {
		fill, err := e.openLive(ctx, symbol, amount)
		if err != nil {
			return nil
		}

		req.Price = fill.EntryPrice
		req.Source = types.TradeSourceLive
	}

	if _, err := e.store.OpenTrade(req); err != nil {
		if req.Source.IsLive() {
			e.flattenUntracked(ctx, symbol, err)

			return nil
		}

		if !errors.IsBenignRace(err) {
			e.logger.Warn("Trade not opened", zap.String("symbol", symbol), zap.Error(err))
		}

		return nil
	}

	if req.Source.IsLive() {
		e.startLiveMonitor(symbol)
	}

	return nil
}

// openLive sends the entry to the exchange. A failure puts the symbol on a short cooldown.
func (e *Engine) openLive(ctx context.Context, symbol string, amount float64) (types.ShortFill, error) {
	trading := e.settings.Trading()

	ctx, cancel := context.WithTimeout(ctx, orderTimeout)
	defer cancel()

	fill, err := e.executor.OpenShort(ctx, types.ShortOrder{
		Symbol:            symbol,
		Margin:            amount,
		Leverage:          trading.Leverage,
		TakeProfitPercent: trading.TakeProfitPercent,
	})
	if err != nil {
		e.logger.Error("Live trade execution failed", zap.String("symbol", symbol), zap.Error(err))
		e.store.AddCooldown(symbol, "Live Fail", e.now().Add(trading.FailureCooldown))
		e.store.AddAlertLog(symbol, "FAIL: "+err.Error())

		return types.ShortFill{}, err //nolint:exhaustruct // failure
	}

	return fill, nil
}

// flattenUntracked closes a filled live short the store refused, so no position is left on the
// exchange without a monitor.
func (e *Engine) flattenUntracked(ctx context.Context, symbol string, cause error) {
	e.logger.Warn("Filled live short was not accepted, closing it", zap.String("symbol", symbol), zap.Error(cause))

	ctx, cancel := context.WithTimeout(ctx, orderTimeout)
	defer cancel()

	if _, err := e.executor.ClosePosition(ctx, symbol); err != nil {
		e.logger.Error("Live position is open on the exchange but not tracked", zap.String("symbol", symbol), zap.Error(err))
		e.store.AddAlertLog(symbol, "UNTRACKED: "+err.Error())

		return
	}

	e.store.AddAlertLog(symbol, "FLATTENED: "+cause.Error())
}
