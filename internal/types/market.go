package types

import "time"

// TickerUpdate is one entry of an all-market ticker batch as received from the feed.
type TickerUpdate struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"`
	High24h   float64 `json:"high_24h"`
}

// CoinSnapshot is the latest market view of one symbol.
type CoinSnapshot struct {
	Symbol    string  `json:"symbol" yaml:"symbol"`
	Price     float64 `json:"price" yaml:"price"`
	Change24h float64 `json:"change_24h" yaml:"change_24h"`
	High24h   float64 `json:"high_24h" yaml:"high_24h"`
	// ListingTime is zero when the exchange has not reported an onboarding date.
	ListingTime time.Time `json:"listing_time" yaml:"listing_time"`
}

// PeakEntry records the highest price seen during the current signal epoch of a symbol.
type PeakEntry struct {
	PeakPrice float64   `json:"peak_price" yaml:"peak_price"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}
