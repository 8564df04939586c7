package storage

import (
	"context"
	"time"

	"github.com/rxtech-lab/argo-shortbot/internal/logger"
	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"github.com/rxtech-lab/argo-shortbot/internal/version"
	"go.uber.org/zap"
)

// RestoreTarget is the part of the state store filled at startup.
type RestoreTarget interface {
	RestoreTrade(trade types.ActiveTrade) bool
	RestoreCooldowns(entries []types.CooldownEntry)
	RestorePortfolio(p types.Portfolio)
	RestoreStats(stats types.GlobalStats)
	RestorePeaks(peaks map[string]types.PeakEntry)
	RestoreGlobalPause(until time.Time) bool
	SetUptimeBefore(d time.Duration)
}

// RestoreSummary reports what Restore put back.
type RestoreSummary struct {
	PaperTrades    int
	SkippedLive    int
	Cooldowns      int
	StateFileFound bool
	PauseRestored  bool
}

// Restore loads the persisted state into target. Live trades are left to the position sync,
// which checks them against the exchange.
func Restore(ctx context.Context, ledger *TradeLedger, cooldowns *CooldownStore, file *StateFile, target RestoreTarget, now time.Time, log *logger.Logger) (RestoreSummary, error) {
	var summary RestoreSummary

	state, found, err := file.Load()
	if err != nil {
		return summary, err
	}

	summary.StateFileFound = found

	if found {
		if err := version.CheckStateCompatibility(version.GetVersion(), state.BotVersion); err != nil {
			return summary, err
		}

		target.RestorePortfolio(state.Portfolio)
		target.RestoreStats(state.Stats)
		target.RestorePeaks(state.Peaks)
		target.SetUptimeBefore(state.Uptime())

		if !state.PausedUntil.IsZero() {
			summary.PauseRestored = target.RestoreGlobalPause(state.PausedUntil)
		}
	}

	open, err := ledger.OpenTrades(ctx)
	if err != nil {
		return summary, err
	}

	for _, row := range open {
		if row.Source.IsLive() {
			summary.SkippedLive++

			continue
		}

		if target.RestoreTrade(tradeFromLedger(row)) {
			summary.PaperTrades++
		}
	}

	entries, err := cooldowns.Active(ctx, now)
	if err != nil {
		return summary, err
	}

	target.RestoreCooldowns(entries)
	summary.Cooldowns = len(entries)

	log.Info("State restored",
		zap.Bool("state_file", summary.StateFileFound),
		zap.Int("paper_trades", summary.PaperTrades),
		zap.Int("live_trades_pending_sync", summary.SkippedLive),
		zap.Int("cooldowns", summary.Cooldowns),
		zap.Bool("global_pause", summary.PauseRestored),
	)

	return summary, nil
}

func tradeFromLedger(row types.LedgerTrade) types.ActiveTrade {
	source := row.Source
	if source == "" {
		source = types.TradeSourceBot
	}

	return types.ActiveTrade{
		Symbol:               row.Symbol,
		AlertNumber:          row.AlertNumber,
		EntryPrice:           row.EntryPrice,
		EntryTime:            row.OpenedAt,
		EntryIndicator:       row.EntryRSI,
		Amount:               row.Amount,
		Leverage:             row.Leverage,
		Source:               source,
		Change24h:            row.Change24h,
		PnLPercent:           row.PnLPercent,
		PnLUSDT:              row.PnLUSDT,
		MaxAdversePnLPercent: 0,
		MaxAdversePnLUSDT:    0,
		LowestIndicator:      row.EntryRSI.TakeOr(0),
	}
}
