package state

import (
	"sort"
	"strings"
	"time"

	"github.com/rxtech-lab/argo-shortbot/internal/types"
)

// UpdateMarketData stores a feed batch. Symbols without the quote suffix are ignored.
func (s *Store) UpdateMarketData(batch []types.TickerUpdate) {
	suffix := s.settings.Trading().QuoteSuffix

	s.mu.Lock()
	count := 0

	for _, u := range batch {
		if u.Symbol == "" || !strings.HasSuffix(u.Symbol, suffix) {
			continue
		}

		s.coins[u.Symbol] = types.CoinSnapshot{
			Symbol:      u.Symbol,
			Price:       u.Price,
			Change24h:   u.Change24h,
			High24h:     u.High24h,
			ListingTime: s.listingTimes[u.Symbol],
		}
		count++
	}
	s.mu.Unlock()

	s.publish(pendingEvent{types.EventMarketUpdated, types.MarketUpdatedPayload{Symbols: count}})
}

// UpdateListingTimes replaces the known listing times.
func (s *Store) UpdateListingTimes(times map[string]time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listingTimes = make(map[string]time.Time, len(times))
	for k, v := range times {
		s.listingTimes[k] = v
	}
}

// UpdateIndicator stores the newest sample of a symbol and advances the peak tracker
// when the value is above the alert threshold.
func (s *Store) UpdateIndicator(symbol string, sample types.IndicatorSample) {
	trading := s.settings.Trading()

	s.mu.Lock()
	s.indicators[symbol] = sample

	if v, ok := sample.Numeric(); ok && v > trading.AlertThreshold {
		if coin, known := s.coins[symbol]; known && coin.Price > 0 {
			s.updatePeakLocked(symbol, coin.Price, trading.StaleSignalLookback)
		}
	}
	s.mu.Unlock()

	s.publish(pendingEvent{types.EventIndicatorUpdated, types.IndicatorUpdatedPayload{Symbol: symbol, Sample: sample}})
}

// updatePeakLocked starts a new epoch when the current one is older than lookback,
// otherwise it only raises the peak.
func (s *Store) updatePeakLocked(symbol string, price float64, lookback time.Duration) {
	now := s.now()

	peak, ok := s.peaks[symbol]
	if !ok || now.Sub(peak.Timestamp) > lookback {
		s.peaks[symbol] = types.PeakEntry{PeakPrice: price, Timestamp: now}

		return
	}

	if price > peak.PeakPrice {
		s.peaks[symbol] = types.PeakEntry{PeakPrice: price, Timestamp: now}
	}
}

// SymbolsToMonitor returns the symbols the indicator sampler should visit, hottest first.
//
// Coins at or above the hot-coin threshold qualify. When more than the configured maximum qualify
// the threshold is raised to the change of the last coin that fits. Open and cooled down symbols
// are always included.
func (s *Store) SymbolsToMonitor() []string {
	trading := s.settings.Trading()

	s.mu.Lock()
	defer s.mu.Unlock()

	selected := make(map[string]struct{})

	if s.controls.MonitorAll {
		for _, symbol := range hotSymbols(s.coins, trading.HotCoinThreshold, trading.MaxMonitoredSymbols) {
			selected[symbol] = struct{}{}
		}
	}

	for symbol := range s.trades {
		selected[symbol] = struct{}{}
	}

	for symbol := range s.cooldowns {
		selected[symbol] = struct{}{}
	}

	out := make([]string, 0, len(selected))
	for symbol := range selected {
		out = append(out, symbol)
	}

	sortByChange(out, s.coins)

	return out
}

func hotSymbols(coins map[string]types.CoinSnapshot, base float64, limit int) []string {
	qualifying := make([]string, 0)

	for symbol, c := range coins {
		if c.Change24h >= base {
			qualifying = append(qualifying, symbol)
		}
	}

	sortByChange(qualifying, coins)

	if len(qualifying) <= limit {
		return qualifying
	}

	threshold := coins[qualifying[limit-1]].Change24h

	out := qualifying[:0]
	for _, symbol := range qualifying {
		if coins[symbol].Change24h >= threshold {
			out = append(out, symbol)
		}
	}

	return out
}

// sortByChange orders by 24h change descending. Unknown symbols sort last, ties by name.
func sortByChange(symbols []string, coins map[string]types.CoinSnapshot) {
	sort.SliceStable(symbols, func(i, j int) bool {
		ci, cj := coins[symbols[i]].Change24h, coins[symbols[j]].Change24h
		if ci != cj {
			return ci > cj
		}

		return symbols[i] < symbols[j]
	})
}
