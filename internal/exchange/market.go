package exchange

import (
	"context"
	"strconv"
	"time"

	"github.com/rxtech-lab/argo-shortbot/internal/utils"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
)

// MarketData reads public futures market data. It needs no credentials.
type MarketData struct {
	client FuturesClient
	rules  *rulesCache
}

// NewMarketData creates a market data reader.
func NewMarketData(client FuturesClient, policy utils.RetryPolicy) *MarketData {
	return &MarketData{
		client: client,
		rules:  newRulesCache(client, policy),
	}
}

// Closes returns the close prices of the latest klines, oldest first.
// Errors are classified so the caller's retry policy can tell rate limits from bad symbols.
func (m *MarketData) Closes(ctx context.Context, symbol string, interval string, limit int) ([]float64, error) {
	klines, err := m.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, classify(err, errors.ErrCodeMarketDataFailed, "failed to get klines for "+symbol)
	}

	closes := make([]float64, 0, len(klines))

	for _, k := range klines {
		v, err := strconv.ParseFloat(k.Close, 64)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeIndicatorCalculation, err, "invalid close %q for %s", k.Close, symbol)
		}

		closes = append(closes, v)
	}

	return closes, nil
}

// ListingTimes returns the onboard date of every perpetual contract.
// The time is zero when the exchange does not report one.
func (m *MarketData) ListingTimes(ctx context.Context) (map[string]time.Time, error) {
	rules, err := m.rules.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	times := make(map[string]time.Time, len(rules))

	for symbol, r := range rules {
		if r.Perpetual {
			times[symbol] = r.OnboardDate
		}
	}

	return times, nil
}

