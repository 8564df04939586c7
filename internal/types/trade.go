package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// TradeSource tells where a position came from.
type TradeSource string

const (
	// TradeSourceBot is a paper position opened by the engine.
	TradeSourceBot TradeSource = "Bot"
	// TradeSourceLive is a position held on the exchange.
	TradeSourceLive TradeSource = "Live"
	// TradeSourceManual is a paper position opened through the control API.
	TradeSourceManual TradeSource = "Manual"
)

// IsLive reports whether pnl and balance for the source are owned by the exchange.
func (s TradeSource) IsLive() bool {
	return s == TradeSourceLive
}

// ActiveTrade is an open short position. There is at most one per symbol.
type ActiveTrade struct {
	Symbol         string                  `json:"symbol"`
	AlertNumber    int64                   `json:"alert_number"`
	EntryPrice     float64                 `json:"entry_price"`
	EntryTime      time.Time               `json:"entry_time"`
	EntryIndicator optional.Option[float64] `json:"entry_indicator"`
	// Amount is the margin committed in USDT, before leverage.
	Amount    float64     `json:"amount"`
	Leverage  int         `json:"leverage"`
	Source    TradeSource `json:"source"`
	Change24h float64     `json:"change_24h"`

	PnLPercent float64 `json:"pnl_percent"`
	PnLUSDT    float64 `json:"pnl_usdt"`

	// Worst excursion seen while the trade was open. Running minima.
	MaxAdversePnLPercent float64 `json:"max_adverse_pnl_percent"`
	MaxAdversePnLUSDT    float64 `json:"max_adverse_pnl_usdt"`
	LowestIndicator      float64 `json:"lowest_indicator"`
}

// LeveragedAmount is the notional size of the position.
func (t ActiveTrade) LeveragedAmount() float64 {
	return t.Amount * float64(t.Leverage)
}

// OpenTradeRequest describes a position the engine or an operator wants to open.
type OpenTradeRequest struct {
	Symbol      string
	Price       float64
	Indicator   optional.Option[float64]
	Change24h   float64
	Source      TradeSource
	AlertNumber int64
	// Amount overrides the configured sizing policy when set.
	Amount     optional.Option[float64]
	LogMessage optional.Option[string]
}

// TradeStatus is the lifecycle state stored in the trade ledger.
type TradeStatus string

const (
	TradeStatusOpen      TradeStatus = "OPEN"
	TradeStatusClosed    TradeStatus = "CLOSED"
	TradeStatusDiscarded TradeStatus = "DISCARDED"
)

// ClosedTrade is the final record of a position, written to the ledger and sent with trade-closed.
type ClosedTrade struct {
	Trade         ActiveTrade              `json:"trade"`
	Reason        string                   `json:"reason"`
	ClosePrice    float64                  `json:"close_price"`
	ExitIndicator optional.Option[float64] `json:"exit_indicator"`
	ExitTime      time.Time                `json:"exit_time"`
}

// Duration is how long the position was held.
func (c ClosedTrade) Duration() time.Duration {
	return c.ExitTime.Sub(c.Trade.EntryTime)
}

// LedgerTrade is one row of the trade ledger.
type LedgerTrade struct {
	AlertNumber int64
	OpenedAt    time.Time
	Symbol      string
	Status      TradeStatus
	Reason      string
	EntryPrice  float64
	ExitPrice   float64
	PnLPercent  float64
	PnLUSDT     float64
	EntryRSI    optional.Option[float64]
	ExitRSI     optional.Option[float64]
	Amount      float64
	Leverage    int
	Change24h   float64
	Source      TradeSource
	ExitTime    optional.Option[time.Time]
}
