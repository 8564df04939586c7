package engine

import (
	"context"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"go.uber.org/zap"
)

const syncLogMessage = "Synced from Binance"

// SyncOpenPositions adopts the positions already open on the exchange at startup.
// Positions the ledger knows are restored with their ledger metadata. Unknown positions are
// opened as new live trades. Every adopted trade gets a live monitor.
// It returns how many positions were adopted.
func (e *Engine) SyncOpenPositions(ctx context.Context) (int, error) {
	if !e.LiveEnabled() {
		return 0, nil
	}

	positions, err := e.executor.OpenPositions(ctx)
	if err != nil {
		e.logger.Error("Could not list open positions", zap.Error(err))

		return 0, err
	}

	if len(positions) == 0 {
		e.logger.Info("No open positions found on the exchange")

		return 0, nil
	}

	known, err := e.ledger.OpenTrades(ctx)
	if err != nil {
		e.logger.Warn("Could not read open ledger trades, treating all positions as external", zap.Error(err))

		known = map[string]types.LedgerTrade{}
	}

	e.logger.Info("Syncing open positions", zap.Int("count", len(positions)))

	adopted := 0

	for _, position := range positions {
		if e.store.IsOpen(position.Symbol) {
			e.logger.Info("Position already tracked", zap.String("symbol", position.Symbol))

			continue
		}

		if !e.adopt(ctx, position, known) {
			continue
		}

		if pnl, err := e.executor.LivePnL(ctx, position.Symbol); err == nil {
			e.store.UpdateTradePnL(position.Symbol, pnl.PnLPercent, pnl.PnLUSDT, optional.None[float64]())
		}

		e.startLiveMonitor(position.Symbol)

		adopted++
	}

	return adopted, nil
}

func (e *Engine) adopt(ctx context.Context, position types.ExchangePosition, known map[string]types.LedgerTrade) bool {
	leverage := position.Leverage
	if leverage <= 0 {
		leverage = e.settings.Trading().Leverage
	}

	if row, ok := known[position.Symbol]; ok {
		e.logger.Info("Restoring position from ledger", zap.String("symbol", position.Symbol), zap.Int64("alert", row.AlertNumber))

		return e.store.RestoreTrade(types.ActiveTrade{
			Symbol:               position.Symbol,
			AlertNumber:          row.AlertNumber,
			EntryPrice:           position.EntryPrice,
			EntryTime:            row.OpenedAt,
			EntryIndicator:       row.EntryRSI,
			Amount:               row.Amount,
			Leverage:             leverage,
			Source:               types.TradeSourceLive,
			Change24h:            row.Change24h,
			PnLPercent:           0,
			PnLUSDT:              0,
			MaxAdversePnLPercent: 0,
			MaxAdversePnLUSDT:    0,
			LowestIndicator:      row.EntryRSI.TakeOr(0),
		})
	}

	alert, err := e.alerts.NextAlertNumber(ctx)
	if err != nil {
		e.logger.Error("Could not allocate alert number for external position", zap.String("symbol", position.Symbol), zap.Error(err))

		return false
	}

	e.logger.Info("Adopting external position", zap.String("symbol", position.Symbol), zap.Int64("alert", alert))

	_, err = e.store.OpenTrade(types.OpenTradeRequest{
		Symbol:      position.Symbol,
		Price:       position.EntryPrice,
		Indicator:   optional.None[float64](),
		Change24h:   0,
		Source:      types.TradeSourceLive,
		AlertNumber: alert,
		Amount:      optional.Some(position.InitialMargin),
		LogMessage:  optional.Some(syncLogMessage),
	})
	if err == nil {
		return true
	}

	// Limits and cooldowns do not apply to a position that already exists.
	e.logger.Warn("Open rejected for external position, restoring instead", zap.String("symbol", position.Symbol), zap.Error(err))

	return e.store.RestoreTrade(types.ActiveTrade{
		Symbol:               position.Symbol,
		AlertNumber:          alert,
		EntryPrice:           position.EntryPrice,
		EntryTime:            e.now(),
		EntryIndicator:       optional.None[float64](),
		Amount:               position.InitialMargin,
		Leverage:             leverage,
		Source:               types.TradeSourceLive,
		Change24h:            0,
		PnLPercent:           0,
		PnLUSDT:              0,
		MaxAdversePnLPercent: 0,
		MaxAdversePnLUSDT:    0,
		LowestIndicator:      0,
	})
}
