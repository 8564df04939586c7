package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/rxtech-lab/argo-shortbot/internal/utils"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	"github.com/shopspring/decimal"
)

// SymbolRules are the trading filters of one contract.
type SymbolRules struct {
	Symbol            string
	QuantityPrecision int
	TickSize          string
	MinNotional       decimal.Decimal
	OnboardDate       time.Time
	Perpetual         bool
}

// rulesCache loads exchange info once and serves symbol rules from memory.
type rulesCache struct {
	client FuturesClient
	policy utils.RetryPolicy

	mu    sync.RWMutex
	rules map[string]SymbolRules
}

func newRulesCache(client FuturesClient, policy utils.RetryPolicy) *rulesCache {
	return &rulesCache{
		client: client,
		policy: policy,
		mu:     sync.RWMutex{},
		rules:  nil,
	}
}

// Refresh reloads the rules of every symbol.
func (c *rulesCache) Refresh(ctx context.Context) (map[string]SymbolRules, error) {
	info, err := utils.Retry(ctx, c.policy, func(ctx context.Context) (*futures.ExchangeInfo, error) {
		info, err := c.client.NewExchangeInfoService().Do(ctx)

		return info, classify(err, errors.ErrCodeMarketDataFailed, "failed to get exchange info")
	})
	if err != nil {
		return nil, err
	}

	rules := make(map[string]SymbolRules, len(info.Symbols))
	for _, s := range info.Symbols {
		rules[s.Symbol] = parseRules(s)
	}

	c.mu.Lock()
	c.rules = rules
	c.mu.Unlock()

	return rules, nil
}

// Get returns the rules of one symbol, loading them on first use.
func (c *rulesCache) Get(ctx context.Context, symbol string) (SymbolRules, error) {
	c.mu.RLock()
	loaded := c.rules != nil
	r, ok := c.rules[symbol]
	c.mu.RUnlock()

	if !loaded {
		all, err := c.Refresh(ctx)
		if err != nil {
			return SymbolRules{}, err //nolint:exhaustruct // failure
		}

		r, ok = all[symbol]
	}

	if !ok {
		return SymbolRules{}, errors.Newf(errors.ErrCodeInvalidParameter, "%s is not a futures symbol", symbol) //nolint:exhaustruct // failure
	}

	return r, nil
}

func parseRules(s futures.Symbol) SymbolRules {
	rules := SymbolRules{
		Symbol:            s.Symbol,
		QuantityPrecision: s.QuantityPrecision,
		TickSize:          "0",
		MinNotional:       decimal.Zero,
		OnboardDate:       time.Time{},
		Perpetual:         string(s.ContractType) == "PERPETUAL",
	}

	if s.OnboardDate > 0 {
		rules.OnboardDate = time.UnixMilli(s.OnboardDate).UTC()
	}

	for _, f := range s.Filters {
		switch f["filterType"] {
		case "PRICE_FILTER":
			if tick, ok := f["tickSize"].(string); ok {
				rules.TickSize = tick
			}
		case "MIN_NOTIONAL":
			if notional, err := decimal.NewFromString(fmt.Sprint(f["notional"])); err == nil {
				rules.MinNotional = notional
			}
		}
	}

	return rules
}
