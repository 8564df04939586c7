package state

import (
	"fmt"
	"math"
	"sort"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	"go.uber.org/zap"
)

// Trade returns a copy of the open trade of a symbol.
func (s *Store) Trade(symbol string) (types.ActiveTrade, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trades[symbol]
	if !ok {
		return types.ActiveTrade{}, false //nolint:exhaustruct // not found
	}

	return cloneTrade(t), true
}

// Trades returns copies of every open trade, oldest first.
func (s *Store) Trades() []types.ActiveTrade {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tradesLocked()
}

func (s *Store) tradesLocked() []types.ActiveTrade {
	out := make([]types.ActiveTrade, 0, len(s.trades))
	for _, t := range s.trades {
		out = append(out, cloneTrade(t))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].AlertNumber < out[j].AlertNumber
		}

		return out[i].EntryTime.Before(out[j].EntryTime)
	})

	return out
}

// IsOpen reports whether the symbol has an open trade.
func (s *Store) IsOpen(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.trades[symbol]

	return ok
}

// OpenCount returns the number of open trades.
func (s *Store) OpenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.trades)
}

// availableLocked is the balance not committed to open paper trades or pending entries.
func (s *Store) availableLocked() float64 {
	committed := 0.0

	for _, t := range s.trades {
		if !t.Source.IsLive() {
			committed += t.Amount
		}
	}

	for _, r := range s.reservations {
		committed += r
	}

	return s.portfolio.Balance - committed
}

// AvailableMargin is the balance minus margins of open paper trades and pending reservations.
func (s *Store) AvailableMargin() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.availableLocked()
}

// ReserveMargin claims an entry slot for symbol and sets aside amount, so concurrent entries
// can neither spend the same balance nor overrun MaxOpenTrades or the open rate limit while
// their orders are in flight. The claim stamps the rate limit even if the entry later fails.
func (s *Store) ReserveMargin(symbol string, amount float64) error {
	trading := s.settings.Trading()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[symbol]; ok {
		return errors.Newf(errors.ErrCodeTradeAlreadyOpen, "entry already in flight for %s", symbol)
	}

	if _, ok := s.trades[symbol]; ok {
		return errors.Newf(errors.ErrCodeTradeAlreadyOpen, "trade already open for %s", symbol)
	}

	if s.slotsTakenLocked("") >= trading.MaxOpenTrades {
		return errors.Newf(errors.ErrCodeMaxOpenTrades, "already %d open trades and %d entries in flight",
			len(s.trades), len(s.reservations))
	}

	now := s.now()
	if now.Sub(s.lastOpen) < trading.OpenRateLimit {
		return errors.Newf(errors.ErrCodeOpenRateLimited, "last open was %s ago", now.Sub(s.lastOpen))
	}

	if available := s.availableLocked(); available < amount {
		return errors.Newf(errors.ErrCodeInsufficientBalance,
			"available margin %.2f USDT is below required %.2f USDT", available, amount)
	}

	s.reservations[symbol] = amount
	s.lastOpen = now

	return nil
}

// slotsTakenLocked counts open trades plus entries in flight, leaving out the reservation of own.
func (s *Store) slotsTakenLocked(own string) int {
	taken := len(s.trades) + len(s.reservations)
	if _, ok := s.reservations[own]; ok {
		taken--
	}

	return taken
}

// ReleaseMargin drops the reservation of a symbol, if any.
func (s *Store) ReleaseMargin(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.reservations, symbol)
}

// OpenTrade inserts a new short. Nothing changes when it fails.
func (s *Store) OpenTrade(req types.OpenTradeRequest) (types.ActiveTrade, error) {
	trading := s.settings.Trading()

	s.mu.Lock()

	if _, ok := s.trades[req.Symbol]; ok {
		s.mu.Unlock()

		return types.ActiveTrade{}, errors.Newf(errors.ErrCodeTradeAlreadyOpen, "trade already open for %s", req.Symbol) //nolint:exhaustruct // failure
	}

	if s.slotsTakenLocked(req.Symbol) >= trading.MaxOpenTrades {
		s.mu.Unlock()

		return types.ActiveTrade{}, errors.Newf(errors.ErrCodeMaxOpenTrades, "already %d open trades", len(s.trades)) //nolint:exhaustruct // failure
	}

	if entry, ok := s.cooldowns[req.Symbol]; ok && entry.Active(s.now()) {
		s.mu.Unlock()

		return types.ActiveTrade{}, errors.Newf(errors.ErrCodeSymbolOnCooldown, "%s is on cooldown until %s (%s)", //nolint:exhaustruct // failure
			req.Symbol, entry.Expiry.Format("2006-01-02 15:04:05"), entry.Reason)
	}

	amount := req.Amount.TakeOr(trading.ResolveAmount(s.portfolio.Balance))

	if !req.Source.IsLive() {
		// The caller's own reservation is about to be consumed, so it does not count against it.
		available := s.availableLocked() + s.reservations[req.Symbol]
		if available < amount {
			s.addAlertLogLocked(req.Symbol, "SKIP: Insufficient Funds")
			s.mu.Unlock()

			return types.ActiveTrade{}, errors.Newf(errors.ErrCodeInsufficientBalance, //nolint:exhaustruct // failure
				"available margin %.2f USDT is below trade amount %.2f USDT", available, amount)
		}
	}

	now := s.now()
	lowest := 0.0

	if v, err := req.Indicator.Take(); err == nil {
		lowest = v
	}

	trade := types.ActiveTrade{
		Symbol:               req.Symbol,
		AlertNumber:          req.AlertNumber,
		EntryPrice:           req.Price,
		EntryTime:            now,
		EntryIndicator:       cloneOption(req.Indicator),
		Amount:               amount,
		Leverage:             trading.Leverage,
		Source:               req.Source,
		Change24h:            req.Change24h,
		PnLPercent:           0,
		PnLUSDT:              0,
		MaxAdversePnLPercent: 0,
		MaxAdversePnLUSDT:    0,
		LowestIndicator:      lowest,
	}

	s.trades[req.Symbol] = trade
	delete(s.reservations, req.Symbol)
	s.lastOpen = now

	message := req.LogMessage.TakeOr(indicatorLabel(req.Indicator))
	s.addAlertLogLocked(req.Symbol, fmt.Sprintf("OPEN SHORT (%s): %s", req.Source, message))
	s.mu.Unlock()

	s.logger.Info("Trade opened",
		zap.String("symbol", trade.Symbol),
		zap.Int64("alert_number", trade.AlertNumber),
		zap.String("source", string(trade.Source)),
		zap.Float64("entry_price", trade.EntryPrice),
		zap.Float64("amount", trade.Amount),
	)

	s.publish(pendingEvent{types.EventTradeOpened, types.TradeOpenedPayload{Trade: cloneTrade(trade)}})

	return cloneTrade(trade), nil
}

func indicatorLabel(o optional.Option[float64]) string {
	if v, err := o.Take(); err == nil {
		return fmt.Sprintf("%.2f", v)
	}

	return "N/A"
}

// RestoreTrade puts a trade recovered at startup back without publishing trade-opened.
// It is skipped when the symbol is already open.
func (s *Store) RestoreTrade(trade types.ActiveTrade) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trades[trade.Symbol]; ok {
		return false
	}

	s.trades[trade.Symbol] = cloneTrade(trade)

	return true
}

// CloseTrade removes the trade of a symbol. Paper results are realized into the balance and stats.
// The symbol is put on the default cooldown. Closing a symbol that is not open does nothing.
func (s *Store) CloseTrade(symbol, reason string, closePrice float64, exitIndicator optional.Option[float64]) (types.ClosedTrade, bool) {
	trading := s.settings.Trading()

	s.mu.Lock()

	trade, ok := s.trades[symbol]
	if !ok {
		s.mu.Unlock()

		return types.ClosedTrade{}, false //nolint:exhaustruct // nothing closed
	}

	delete(s.trades, symbol)
	delete(s.reservations, symbol)

	if !trade.Source.IsLive() {
		s.portfolio.Balance += trade.PnLUSDT

		if trade.PnLUSDT >= 0 {
			s.stats.RealizedProfit += trade.PnLUSDT
			s.stats.Wins++
		} else {
			s.stats.RealizedLoss += math.Abs(trade.PnLUSDT)
			s.stats.Losses++
		}
	}

	now := s.now()
	cooldown := types.CooldownEntry{Symbol: symbol, Reason: reason, Start: now, Expiry: now.Add(trading.DefaultCooldown)}
	s.cooldowns[symbol] = cooldown

	s.addAlertLogLocked(symbol, "CLOSE SHORT: "+reason)

	closed := types.ClosedTrade{
		Trade:         cloneTrade(trade),
		Reason:        reason,
		ClosePrice:    closePrice,
		ExitIndicator: cloneOption(exitIndicator),
		ExitTime:      now,
	}
	balance := s.portfolio.Balance
	stats := s.stats
	s.mu.Unlock()

	s.logger.Info("Trade closed",
		zap.String("symbol", symbol),
		zap.String("reason", reason),
		zap.Float64("close_price", closePrice),
		zap.Float64("pnl_usdt", trade.PnLUSDT),
		zap.Float64("balance", balance),
	)

	s.publish(
		pendingEvent{types.EventCooldownAdd, types.CooldownAddPayload{Entry: cooldown}},
		pendingEvent{types.EventTradeClosed, types.TradeClosedPayload{Closed: closed, NewBalance: balance}},
		pendingEvent{types.EventStatsUpdated, types.StatsUpdatedPayload{Stats: stats}},
		pendingEvent{types.EventPortfolioUpdated, types.PortfolioUpdatedPayload{Balance: balance}},
	)

	return closed, true
}

// DiscardTrade drops a trade without realizing its pnl and puts the symbol on the default cooldown.
func (s *Store) DiscardTrade(symbol string) (types.ActiveTrade, bool) {
	trading := s.settings.Trading()

	s.mu.Lock()

	trade, ok := s.trades[symbol]
	if !ok {
		s.mu.Unlock()

		return types.ActiveTrade{}, false //nolint:exhaustruct // nothing discarded
	}

	delete(s.trades, symbol)
	delete(s.reservations, symbol)

	now := s.now()
	cooldown := types.CooldownEntry{Symbol: symbol, Reason: "Discarded", Start: now, Expiry: now.Add(trading.DefaultCooldown)}
	s.cooldowns[symbol] = cooldown
	s.addAlertLogLocked(symbol, "DISCARD")
	s.mu.Unlock()

	s.publish(
		pendingEvent{types.EventCooldownAdd, types.CooldownAddPayload{Entry: cooldown}},
		pendingEvent{types.EventTradeDiscarded, types.TradeDiscardedPayload{Trade: cloneTrade(trade)}},
	)

	return cloneTrade(trade), true
}

// UpdateTradePnL overwrites the running pnl of an open trade. The worst excursion only moves
// down and only when an indicator value accompanies the update.
func (s *Store) UpdateTradePnL(symbol string, pnlPercent, pnlUSDT float64, indicator optional.Option[float64]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	trade, ok := s.trades[symbol]
	if !ok {
		return false
	}

	trade.PnLPercent = pnlPercent
	trade.PnLUSDT = pnlUSDT

	if v, err := indicator.Take(); err == nil {
		trade.MaxAdversePnLPercent = math.Min(trade.MaxAdversePnLPercent, pnlPercent)
		trade.MaxAdversePnLUSDT = math.Min(trade.MaxAdversePnLUSDT, pnlUSDT)
		trade.LowestIndicator = math.Min(trade.LowestIndicator, v)
	}

	s.trades[symbol] = trade

	return true
}
