package exchange

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/rxtech-lab/argo-shortbot/internal/config"
	"github.com/rxtech-lab/argo-shortbot/internal/logger"
	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"github.com/rxtech-lab/argo-shortbot/internal/utils"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	quoteAsset = "USDT"
	// Wait before reading the average price of a market order.
	defaultFillDelay = 500 * time.Millisecond
)

// Executor places and manages live shorts on Binance futures.
// Market orders are never retried; reads and cancels are.
type Executor struct {
	client    FuturesClient
	rules     *rulesCache
	policy    utils.RetryPolicy
	fillDelay time.Duration
	logger    *logger.Logger
}

// NewBinanceExecutor creates an executor from config. It fails when the keys are missing.
func NewBinanceExecutor(cfg config.BinanceConfig, log *logger.Logger) (*Executor, error) {
	if !cfg.HasCredentials() {
		return nil, errors.New(errors.ErrCodeMissingCredentials, "binance api key and secret key are required for live trading")
	}

	return NewExecutor(NewFuturesClient(cfg.APIKey, cfg.SecretKey, cfg.Testnet), cfg, log), nil
}

// NewExecutor creates an executor over any futures client.
func NewExecutor(client FuturesClient, cfg config.BinanceConfig, log *logger.Logger) *Executor {
	policy := utils.RetryPolicy{Retries: cfg.Retries, BaseDelay: time.Second, CallTimeout: cfg.CallTimeout}

	return &Executor{
		client:    client,
		rules:     newRulesCache(client, policy),
		policy:    policy,
		fillDelay: defaultFillDelay,
		logger:    log,
	}
}

// RefreshRules reloads exchange rules.
func (e *Executor) RefreshRules(ctx context.Context) error {
	_, err := e.rules.Refresh(ctx)

	return err
}

// OpenShort sets the leverage, sells at market and attaches a take-profit that closes the position.
func (e *Executor) OpenShort(ctx context.Context, order types.ShortOrder) (types.ShortFill, error) {
	rules, err := e.rules.Get(ctx, order.Symbol)
	if err != nil {
		return types.ShortFill{}, err //nolint:exhaustruct // failure
	}

	_, err = utils.Retry(ctx, e.policy, func(ctx context.Context) (*futures.SymbolLeverage, error) {
		res, err := e.client.NewChangeLeverageService().Symbol(order.Symbol).Leverage(order.Leverage).Do(ctx)

		return res, classify(err, errors.ErrCodeOrderFailed, "failed to change leverage")
	})
	if err != nil {
		return types.ShortFill{}, err //nolint:exhaustruct // failure
	}

	price, err := e.lastPrice(ctx, order.Symbol)
	if err != nil {
		return types.ShortFill{}, err //nolint:exhaustruct // failure
	}

	quantity := utils.ShortQuantity(order.Margin, order.Leverage, price, rules.QuantityPrecision)
	if !quantity.IsPositive() {
		return types.ShortFill{}, errors.New(errors.ErrCodeInvalidOrderSize, "calculated quantity is zero") //nolint:exhaustruct // failure
	}

	notional := quantity.Mul(decimal.NewFromFloat(price))
	if rules.MinNotional.IsPositive() && notional.LessThan(rules.MinNotional) {
		return types.ShortFill{}, errors.Newf(errors.ErrCodeInvalidOrderSize, //nolint:exhaustruct // failure
			"order size (%s USDT) is less than the minimum required (%s USDT)",
			notional.StringFixed(2), rules.MinNotional.String())
	}

	res, err := e.client.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(futures.SideTypeSell).
		Type(futures.OrderTypeMarket).
		Quantity(quantity.String()).
		Do(ctx)
	if err != nil {
		return types.ShortFill{}, classify(err, errors.ErrCodeOrderFailed, "failed to place short order") //nolint:exhaustruct // failure
	}

	entry := e.averagePrice(ctx, order.Symbol, res.OrderID)
	if entry <= 0 {
		entry = price
	}

	fill := types.ShortFill{
		Symbol:            order.Symbol,
		OrderID:           res.OrderID,
		EntryPrice:        entry,
		Quantity:          quantity.String(),
		TakeProfitOrderID: 0,
		TakeProfitPrice:   "",
	}

	tp, err := utils.RoundToTickSize(utils.TakeProfitPrice(entry, order.TakeProfitPercent, order.Leverage), rules.TickSize)
	if err != nil {
		e.logger.Error("Invalid tick size, take profit not placed",
			zap.String("symbol", order.Symbol), zap.String("tick_size", rules.TickSize), zap.Error(err))

		return fill, nil
	}

	fill.TakeProfitPrice = tp.String()

	tpRes, err := e.client.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(futures.SideTypeBuy).
		Type(futures.OrderTypeTakeProfitMarket).
		StopPrice(tp.String()).
		ClosePosition(true).
		Do(ctx)
	if err != nil {
		// The short is already open; the live monitor still closes it on the indicator rule.
		e.logger.Error("Failed to place take profit order",
			zap.String("symbol", order.Symbol), zap.String("stop_price", tp.String()), zap.Error(err))

		return fill, nil
	}

	fill.TakeProfitOrderID = tpRes.OrderID

	e.logger.Info("Live short opened",
		zap.String("symbol", order.Symbol),
		zap.Float64("entry_price", entry),
		zap.String("quantity", fill.Quantity),
		zap.String("take_profit", fill.TakeProfitPrice),
	)

	return fill, nil
}

// ClosePosition cancels the open orders of a symbol and buys back the position at market.
// It returns the average close price, or zero when there was nothing to close.
func (e *Executor) ClosePosition(ctx context.Context, symbol string) (float64, error) {
	_, err := utils.Retry(ctx, e.policy, func(ctx context.Context) (struct{}, error) {
		err := e.client.NewCancelAllOpenOrdersService().Symbol(symbol).Do(ctx)

		return struct{}{}, classify(err, errors.ErrCodeCloseFailed, "failed to cancel open orders")
	})
	if err != nil {
		return 0, err
	}

	risk, err := e.positionRisk(ctx, symbol)
	if err != nil {
		return 0, err
	}

	pos, ok := findPosition(risk, symbol)
	if !ok || pos.PositionAmt == "" {
		return 0, nil
	}

	amount, err := strconv.ParseFloat(pos.PositionAmt, 64)
	if err != nil || amount == 0 {
		return 0, nil //nolint:nilerr // unparsable amount means no position
	}

	side := futures.SideTypeBuy
	if amount > 0 {
		side = futures.SideTypeSell
	}

	res, err := e.client.NewCreateOrderService().
		Symbol(symbol).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(strings.TrimPrefix(pos.PositionAmt, "-")).
		ReduceOnly(true).
		Do(ctx)
	if err != nil {
		return 0, classify(err, errors.ErrCodeCloseFailed, "failed to place close order")
	}

	closePrice := e.averagePrice(ctx, symbol, res.OrderID)

	e.logger.Info("Live position closed", zap.String("symbol", symbol), zap.Float64("close_price", closePrice))

	return closePrice, nil
}

// LivePnL returns the unrealized pnl of a position and its percent of the initial margin.
func (e *Executor) LivePnL(ctx context.Context, symbol string) (types.LivePnL, error) {
	risk, err := e.positionRisk(ctx, symbol)
	if err != nil {
		return types.LivePnL{}, err //nolint:exhaustruct // failure
	}

	pos, ok := findPosition(risk, symbol)
	if !ok {
		return types.LivePnL{}, errors.Newf(errors.ErrCodePositionNotFound, "no position for %s", symbol) //nolint:exhaustruct // failure
	}

	p := toPosition(pos)

	pnl := types.LivePnL{PnLUSDT: p.UnrealizedPnL, PnLPercent: 0}
	if p.InitialMargin > 0 {
		pnl.PnLPercent = p.UnrealizedPnL / p.InitialMargin * 100
	}

	return pnl, nil
}

// Balance returns the available USDT of the futures wallet.
func (e *Executor) Balance(ctx context.Context) (float64, error) {
	balances, err := utils.Retry(ctx, e.policy, func(ctx context.Context) ([]*futures.Balance, error) {
		res, err := e.client.NewGetBalanceService().Do(ctx)

		return res, classify(err, errors.ErrCodeExchangeUnavailable, "failed to get futures balance")
	})
	if err != nil {
		return 0, err
	}

	for _, b := range balances {
		if b.Asset == quoteAsset {
			v, err := strconv.ParseFloat(b.AvailableBalance, 64)
			if err != nil {
				return 0, errors.Wrap(errors.ErrCodeExchangeUnavailable, "invalid balance from exchange", err)
			}

			return v, nil
		}
	}

	return 0, nil
}

// OpenPositions lists every non-zero position.
func (e *Executor) OpenPositions(ctx context.Context) ([]types.ExchangePosition, error) {
	risk, err := e.positionRisk(ctx, "")
	if err != nil {
		return nil, err
	}

	positions := make([]types.ExchangePosition, 0)

	for _, r := range risk {
		p := toPosition(r)
		if p.Amount != 0 {
			positions = append(positions, p)
		}
	}

	return positions, nil
}

func (e *Executor) positionRisk(ctx context.Context, symbol string) ([]*futures.PositionRisk, error) {
	return utils.Retry(ctx, e.policy, func(ctx context.Context) ([]*futures.PositionRisk, error) {
		svc := e.client.NewGetPositionRiskService()
		if symbol != "" {
			svc = svc.Symbol(symbol)
		}

		res, err := svc.Do(ctx)

		return res, classify(err, errors.ErrCodePositionNotFound, "failed to get position information")
	})
}

func (e *Executor) lastPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := utils.Retry(ctx, e.policy, func(ctx context.Context) ([]*futures.SymbolPrice, error) {
		res, err := e.client.NewListPricesService().Symbol(symbol).Do(ctx)

		return res, classify(err, errors.ErrCodeMarketDataFailed, "failed to get last price")
	})
	if err != nil {
		return 0, err
	}

	for _, p := range prices {
		if p.Symbol == symbol {
			v, err := strconv.ParseFloat(p.Price, 64)
			if err == nil && v > 0 {
				return v, nil
			}
		}
	}

	return 0, errors.Newf(errors.ErrCodeCoinNotFound, "no price for %s", symbol)
}

// averagePrice waits for the fill and reads the order's average price. Zero means unknown.
func (e *Executor) averagePrice(ctx context.Context, symbol string, orderID int64) float64 {
	if e.fillDelay > 0 {
		t := time.NewTimer(e.fillDelay)
		select {
		case <-ctx.Done():
			t.Stop()

			return 0
		case <-t.C:
		}
	}

	order, err := utils.Retry(ctx, e.policy, func(ctx context.Context) (*futures.Order, error) {
		res, err := e.client.NewGetOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)

		return res, classify(err, errors.ErrCodeOrderFailed, "failed to get order")
	})
	if err != nil {
		e.logger.Warn("Could not read fill price", zap.String("symbol", symbol), zap.Int64("order_id", orderID), zap.Error(err))

		return 0
	}

	v, _ := strconv.ParseFloat(order.AvgPrice, 64)

	return v
}

func findPosition(risk []*futures.PositionRisk, symbol string) (*futures.PositionRisk, bool) {
	for _, r := range risk {
		if r.Symbol == symbol {
			return r, true
		}
	}

	return nil, false
}

func toPosition(r *futures.PositionRisk) types.ExchangePosition {
	amount, _ := strconv.ParseFloat(r.PositionAmt, 64)
	entry, _ := strconv.ParseFloat(r.EntryPrice, 64)
	mark, _ := strconv.ParseFloat(r.MarkPrice, 64)
	upnl, _ := strconv.ParseFloat(r.UnRealizedProfit, 64)
	notional, _ := strconv.ParseFloat(r.Notional, 64)
	leverage, _ := strconv.Atoi(r.Leverage)

	margin := 0.0
	if leverage > 0 {
		margin = abs(notional) / float64(leverage)
	}

	return types.ExchangePosition{
		Symbol:        r.Symbol,
		Amount:        amount,
		EntryPrice:    entry,
		MarkPrice:     mark,
		UnrealizedPnL: upnl,
		InitialMargin: margin,
		Leverage:      leverage,
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}

	return v
}
