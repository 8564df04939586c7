package exchange

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/rxtech-lab/argo-shortbot/internal/config"
	"github.com/rxtech-lab/argo-shortbot/internal/logger"
	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"github.com/rxtech-lab/argo-shortbot/internal/utils"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// Mock implementations for testing

type placedOrder struct {
	symbol        string
	side          futures.SideType
	orderType     futures.OrderType
	quantity      string
	reduceOnly    bool
	stopPrice     string
	closePosition bool
}

type mockFuturesClient struct {
	leverage      []int
	leverageErr   error
	orders        []*placedOrder
	orderErrs     []error
	nextOrderID   int64
	avgPrice      string
	cancelled     []string
	cancelErrs    []error
	positions     []*futures.PositionRisk
	positionErr   error
	balances      []*futures.Balance
	exchangeInfo  *futures.ExchangeInfo
	exchangeCalls int
	klines        []*futures.Kline
	klinesErr     error
	price         string
}

func newMockFuturesClient() *mockFuturesClient {
	return &mockFuturesClient{
		nextOrderID: 1000,
		avgPrice:    "0",
		price:       "2.00",
		exchangeInfo: &futures.ExchangeInfo{
			Symbols: []futures.Symbol{
				{
					Symbol:            "DOGEUSDT",
					ContractType:      futures.ContractTypePerpetual,
					QuantityPrecision: 0,
					OnboardDate:       1569398400000,
					Filters: []map[string]interface{}{
						{"filterType": "PRICE_FILTER", "tickSize": "0.001"},
						{"filterType": "MIN_NOTIONAL", "notional": "5"},
					},
				},
				{
					Symbol:       "BTCUSDT_240628",
					ContractType: futures.ContractTypeCurrentQuarter,
					OnboardDate:  1703577600000,
				},
			},
		},
	}
}

func (m *mockFuturesClient) NewChangeLeverageService() ChangeLeverageService {
	return &mockChangeLeverageService{client: m}
}

func (m *mockFuturesClient) NewCreateOrderService() CreateOrderService {
	return &mockCreateOrderService{client: m, order: &placedOrder{}}
}

func (m *mockFuturesClient) NewGetOrderService() GetOrderService {
	return &mockGetOrderService{client: m}
}

func (m *mockFuturesClient) NewCancelAllOpenOrdersService() CancelAllOpenOrdersService {
	return &mockCancelAllOpenOrdersService{client: m}
}

func (m *mockFuturesClient) NewGetPositionRiskService() GetPositionRiskService {
	return &mockGetPositionRiskService{client: m}
}

func (m *mockFuturesClient) NewGetBalanceService() GetBalanceService {
	return &mockGetBalanceService{client: m}
}

func (m *mockFuturesClient) NewExchangeInfoService() ExchangeInfoService {
	return &mockExchangeInfoService{client: m}
}

func (m *mockFuturesClient) NewKlinesService() KlinesService {
	return &mockKlinesService{client: m}
}

func (m *mockFuturesClient) NewListPricesService() ListPricesService {
	return &mockListPricesService{client: m}
}

type mockChangeLeverageService struct {
	client   *mockFuturesClient
	symbol   string
	leverage int
}

func (s *mockChangeLeverageService) Symbol(symbol string) ChangeLeverageService {
	s.symbol = symbol
	return s
}

func (s *mockChangeLeverageService) Leverage(leverage int) ChangeLeverageService {
	s.leverage = leverage
	return s
}

func (s *mockChangeLeverageService) Do(_ context.Context) (*futures.SymbolLeverage, error) {
	if s.client.leverageErr != nil {
		return nil, s.client.leverageErr
	}

	s.client.leverage = append(s.client.leverage, s.leverage)

	return &futures.SymbolLeverage{Symbol: s.symbol, Leverage: s.leverage}, nil
}

type mockCreateOrderService struct {
	client *mockFuturesClient
	order  *placedOrder
}

func (s *mockCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.order.symbol = symbol
	return s
}

func (s *mockCreateOrderService) Side(side futures.SideType) CreateOrderService {
	s.order.side = side
	return s
}

func (s *mockCreateOrderService) Type(orderType futures.OrderType) CreateOrderService {
	s.order.orderType = orderType
	return s
}

func (s *mockCreateOrderService) Quantity(quantity string) CreateOrderService {
	s.order.quantity = quantity
	return s
}

func (s *mockCreateOrderService) ReduceOnly(reduceOnly bool) CreateOrderService {
	s.order.reduceOnly = reduceOnly
	return s
}

func (s *mockCreateOrderService) StopPrice(stopPrice string) CreateOrderService {
	s.order.stopPrice = stopPrice
	return s
}

func (s *mockCreateOrderService) ClosePosition(closePosition bool) CreateOrderService {
	s.order.closePosition = closePosition
	return s
}

func (s *mockCreateOrderService) Do(_ context.Context) (*futures.CreateOrderResponse, error) {
	if len(s.client.orderErrs) > 0 {
		err := s.client.orderErrs[0]
		s.client.orderErrs = s.client.orderErrs[1:]

		if err != nil {
			return nil, err
		}
	}

	s.client.orders = append(s.client.orders, s.order)
	s.client.nextOrderID++

	return &futures.CreateOrderResponse{Symbol: s.order.symbol, OrderID: s.client.nextOrderID}, nil
}

type mockGetOrderService struct {
	client  *mockFuturesClient
	orderID int64
}

func (s *mockGetOrderService) Symbol(_ string) GetOrderService {
	return s
}

func (s *mockGetOrderService) OrderID(orderID int64) GetOrderService {
	s.orderID = orderID
	return s
}

func (s *mockGetOrderService) Do(_ context.Context) (*futures.Order, error) {
	return &futures.Order{OrderID: s.orderID, AvgPrice: s.client.avgPrice}, nil
}

type mockCancelAllOpenOrdersService struct {
	client *mockFuturesClient
	symbol string
}

func (s *mockCancelAllOpenOrdersService) Symbol(symbol string) CancelAllOpenOrdersService {
	s.symbol = symbol
	return s
}

func (s *mockCancelAllOpenOrdersService) Do(_ context.Context) error {
	if len(s.client.cancelErrs) > 0 {
		err := s.client.cancelErrs[0]
		s.client.cancelErrs = s.client.cancelErrs[1:]

		if err != nil {
			return err
		}
	}

	s.client.cancelled = append(s.client.cancelled, s.symbol)

	return nil
}

type mockGetPositionRiskService struct {
	client *mockFuturesClient
	symbol string
}

func (s *mockGetPositionRiskService) Symbol(symbol string) GetPositionRiskService {
	s.symbol = symbol
	return s
}

func (s *mockGetPositionRiskService) Do(_ context.Context) ([]*futures.PositionRisk, error) {
	if s.client.positionErr != nil {
		return nil, s.client.positionErr
	}

	if s.symbol == "" {
		return s.client.positions, nil
	}

	out := make([]*futures.PositionRisk, 0)

	for _, p := range s.client.positions {
		if p.Symbol == s.symbol {
			out = append(out, p)
		}
	}

	return out, nil
}

type mockGetBalanceService struct {
	client *mockFuturesClient
}

func (s *mockGetBalanceService) Do(_ context.Context) ([]*futures.Balance, error) {
	return s.client.balances, nil
}

type mockExchangeInfoService struct {
	client *mockFuturesClient
}

func (s *mockExchangeInfoService) Do(_ context.Context) (*futures.ExchangeInfo, error) {
	s.client.exchangeCalls++

	return s.client.exchangeInfo, nil
}

type mockKlinesService struct {
	client *mockFuturesClient
}

func (s *mockKlinesService) Symbol(_ string) KlinesService {
	return s
}

func (s *mockKlinesService) Interval(_ string) KlinesService {
	return s
}

func (s *mockKlinesService) Limit(_ int) KlinesService {
	return s
}

func (s *mockKlinesService) Do(_ context.Context) ([]*futures.Kline, error) {
	return s.client.klines, s.client.klinesErr
}

type mockListPricesService struct {
	client *mockFuturesClient
	symbol string
}

func (s *mockListPricesService) Symbol(symbol string) ListPricesService {
	s.symbol = symbol
	return s
}

func (s *mockListPricesService) Do(_ context.Context) ([]*futures.SymbolPrice, error) {
	return []*futures.SymbolPrice{{Symbol: s.symbol, Price: s.client.price}}, nil
}

type ExecutorTestSuite struct {
	suite.Suite
	client   *mockFuturesClient
	executor *Executor
}

func TestExecutorTestSuite(t *testing.T) {
	suite.Run(t, new(ExecutorTestSuite))
}

func (suite *ExecutorTestSuite) SetupTest() {
	suite.client = newMockFuturesClient()

	cfg := config.Default().Binance
	suite.executor = NewExecutor(suite.client, cfg, logger.NewNop())
	suite.executor.fillDelay = 0
	suite.executor.policy = utils.RetryPolicy{Retries: 2, BaseDelay: time.Millisecond, CallTimeout: time.Second}
	suite.executor.rules = newRulesCache(suite.client, suite.executor.policy)
}

func (suite *ExecutorTestSuite) TestNewBinanceExecutorRequiresCredentials() {
	_, err := NewBinanceExecutor(config.Default().Binance, logger.NewNop())
	suite.True(errors.HasCode(err, errors.ErrCodeMissingCredentials))
}

func (suite *ExecutorTestSuite) TestOpenShort() {
	suite.client.avgPrice = "2.10"

	fill, err := suite.executor.OpenShort(context.Background(), types.ShortOrder{
		Symbol: "DOGEUSDT", Margin: 6, Leverage: 2, TakeProfitPercent: 10,
	})
	suite.Require().NoError(err)

	suite.Equal([]int{2}, suite.client.leverage)
	suite.Require().Len(suite.client.orders, 2)

	entry := suite.client.orders[0]
	suite.Equal(futures.SideTypeSell, entry.side)
	suite.Equal(futures.OrderTypeMarket, entry.orderType)
	suite.Equal("6", entry.quantity)

	tp := suite.client.orders[1]
	suite.Equal(futures.SideTypeBuy, tp.side)
	suite.Equal(futures.OrderTypeTakeProfitMarket, tp.orderType)
	suite.True(tp.closePosition)
	// 2.10 * (1 - 0.10/2) = 1.995
	suite.Equal("1.995", tp.stopPrice)

	suite.InDelta(2.10, fill.EntryPrice, 1e-9)
	suite.Equal("6", fill.Quantity)
	suite.NotZero(fill.TakeProfitOrderID)
}

func (suite *ExecutorTestSuite) TestOpenShortFallsBackToLastPrice() {
	fill, err := suite.executor.OpenShort(context.Background(), types.ShortOrder{
		Symbol: "DOGEUSDT", Margin: 6, Leverage: 2, TakeProfitPercent: 10,
	})
	suite.Require().NoError(err)
	suite.InDelta(2.0, fill.EntryPrice, 1e-9)
}

func (suite *ExecutorTestSuite) TestOpenShortBelowMinNotional() {
	_, err := suite.executor.OpenShort(context.Background(), types.ShortOrder{
		Symbol: "DOGEUSDT", Margin: 2, Leverage: 2, TakeProfitPercent: 10,
	})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidOrderSize))
	suite.Empty(suite.client.orders)
}

func (suite *ExecutorTestSuite) TestOpenShortZeroQuantity() {
	suite.client.price = "100"

	_, err := suite.executor.OpenShort(context.Background(), types.ShortOrder{
		Symbol: "DOGEUSDT", Margin: 1, Leverage: 2, TakeProfitPercent: 10,
	})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidOrderSize))
}

func (suite *ExecutorTestSuite) TestOpenShortUnknownSymbol() {
	_, err := suite.executor.OpenShort(context.Background(), types.ShortOrder{
		Symbol: "NOPEUSDT", Margin: 6, Leverage: 2, TakeProfitPercent: 10,
	})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
	suite.Empty(suite.client.leverage)
}

func (suite *ExecutorTestSuite) TestOpenShortOrderRejected() {
	suite.client.orderErrs = []error{&common.APIError{Code: -2019, Message: "Margin is insufficient."}}

	_, err := suite.executor.OpenShort(context.Background(), types.ShortOrder{
		Symbol: "DOGEUSDT", Margin: 6, Leverage: 2, TakeProfitPercent: 10,
	})
	suite.True(errors.HasCode(err, errors.ErrCodeOrderFailed))
	suite.Empty(suite.client.orders)
}

func (suite *ExecutorTestSuite) TestOpenShortKeepsFillWhenTakeProfitFails() {
	suite.client.orderErrs = []error{nil, stderrors.New("boom")}

	fill, err := suite.executor.OpenShort(context.Background(), types.ShortOrder{
		Symbol: "DOGEUSDT", Margin: 6, Leverage: 2, TakeProfitPercent: 10,
	})
	suite.Require().NoError(err)
	suite.Zero(fill.TakeProfitOrderID)
	suite.Len(suite.client.orders, 1)
}

func (suite *ExecutorTestSuite) TestRulesLoadedOnce() {
	for i := 0; i < 3; i++ {
		_, err := suite.executor.OpenShort(context.Background(), types.ShortOrder{
			Symbol: "DOGEUSDT", Margin: 6, Leverage: 2, TakeProfitPercent: 10,
		})
		suite.Require().NoError(err)
	}

	suite.Equal(1, suite.client.exchangeCalls)
}

func (suite *ExecutorTestSuite) TestClosePosition() {
	suite.client.avgPrice = "1.50"
	suite.client.positions = []*futures.PositionRisk{
		{Symbol: "DOGEUSDT", PositionAmt: "-6", Leverage: "2", Notional: "-9", UnRealizedProfit: "3"},
	}

	price, err := suite.executor.ClosePosition(context.Background(), "DOGEUSDT")
	suite.Require().NoError(err)
	suite.InDelta(1.5, price, 1e-9)

	suite.Equal([]string{"DOGEUSDT"}, suite.client.cancelled)
	suite.Require().Len(suite.client.orders, 1)
	suite.Equal(futures.SideTypeBuy, suite.client.orders[0].side)
	suite.Equal("6", suite.client.orders[0].quantity)
	suite.True(suite.client.orders[0].reduceOnly)
}

func (suite *ExecutorTestSuite) TestClosePositionNothingOpen() {
	price, err := suite.executor.ClosePosition(context.Background(), "DOGEUSDT")
	suite.Require().NoError(err)
	suite.Zero(price)
	suite.Empty(suite.client.orders)
}

func (suite *ExecutorTestSuite) TestClosePositionRetriesRateLimitedCancel() {
	suite.client.cancelErrs = []error{&common.APIError{Code: -1003, Message: "Too many requests"}}

	_, err := suite.executor.ClosePosition(context.Background(), "DOGEUSDT")
	suite.Require().NoError(err)
	suite.Equal([]string{"DOGEUSDT"}, suite.client.cancelled)
}

func (suite *ExecutorTestSuite) TestLivePnL() {
	suite.client.positions = []*futures.PositionRisk{
		{Symbol: "DOGEUSDT", PositionAmt: "-6", Leverage: "2", Notional: "-12", UnRealizedProfit: "1.2"},
	}

	pnl, err := suite.executor.LivePnL(context.Background(), "DOGEUSDT")
	suite.Require().NoError(err)
	suite.InDelta(1.2, pnl.PnLUSDT, 1e-9)
	suite.InDelta(20.0, pnl.PnLPercent, 1e-9)

	_, err = suite.executor.LivePnL(context.Background(), "BTCUSDT")
	suite.True(errors.HasCode(err, errors.ErrCodePositionNotFound))
}

func (suite *ExecutorTestSuite) TestBalanceAndOpenPositions() {
	suite.client.balances = []*futures.Balance{
		{Asset: "BNB", AvailableBalance: "1"},
		{Asset: "USDT", AvailableBalance: "123.45"},
	}
	suite.client.positions = []*futures.PositionRisk{
		{Symbol: "DOGEUSDT", PositionAmt: "-6", Leverage: "2", Notional: "-12", EntryPrice: "2"},
		{Symbol: "BTCUSDT", PositionAmt: "0", Leverage: "2", Notional: "0"},
	}

	balance, err := suite.executor.Balance(context.Background())
	suite.Require().NoError(err)
	suite.InDelta(123.45, balance, 1e-9)

	positions, err := suite.executor.OpenPositions(context.Background())
	suite.Require().NoError(err)
	suite.Require().Len(positions, 1)
	suite.Equal("DOGEUSDT", positions[0].Symbol)
	suite.InDelta(6.0, positions[0].InitialMargin, 1e-9)
	suite.InDelta(-6.0, positions[0].Amount, 1e-9)
}

func (suite *ExecutorTestSuite) TestPositionErrorIsTransient() {
	suite.client.positionErr = stderrors.New("connection reset")

	_, err := suite.executor.OpenPositions(context.Background())
	suite.True(errors.IsTransient(err))
}

func (suite *ExecutorTestSuite) TestMarketData() {
	md := NewMarketData(suite.client, suite.executor.policy)
	suite.client.klines = []*futures.Kline{{Close: "1.0"}, {Close: "1.5"}}

	closes, err := md.Closes(context.Background(), "DOGEUSDT", "1h", 100)
	suite.Require().NoError(err)
	suite.Equal([]float64{1.0, 1.5}, closes)

	suite.client.klinesErr = &common.APIError{Code: -1121, Message: "Invalid symbol."}
	_, err = md.Closes(context.Background(), "NOPEUSDT", "1h", 100)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	suite.client.klinesErr = &common.APIError{Code: -1003, Message: "Too many requests"}
	_, err = md.Closes(context.Background(), "DOGEUSDT", "1h", 100)
	suite.True(errors.IsTransient(err))

	times, err := md.ListingTimes(context.Background())
	suite.Require().NoError(err)
	suite.Equal(time.UnixMilli(1569398400000).UTC(), times["DOGEUSDT"])
	suite.NotContains(times, "BTCUSDT_240628")
}
