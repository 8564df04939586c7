package types

// ShortOrder asks the exchange to open a short with a take-profit attached.
type ShortOrder struct {
	Symbol            string
	Margin            float64
	Leverage          int
	TakeProfitPercent float64
}

// ShortFill is the result of a filled short entry.
type ShortFill struct {
	Symbol     string
	OrderID    int64
	EntryPrice float64
	Quantity   string
	// TakeProfitOrderID is zero when the take-profit order could not be placed.
	TakeProfitOrderID int64
	TakeProfitPrice   string
}

// LivePnL is the unrealized result of an exchange position.
type LivePnL struct {
	PnLUSDT    float64
	PnLPercent float64
}

// ExchangePosition is a non-zero position reported by the exchange.
type ExchangePosition struct {
	Symbol string
	// Amount is signed. Shorts are negative.
	Amount        float64
	EntryPrice    float64
	MarkPrice     float64
	UnrealizedPnL float64
	InitialMargin float64
	Leverage      int
}
