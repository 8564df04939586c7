package types

import "time"

// EventType names a topic on the event bus.
type EventType string

const (
	EventMarketUpdated    EventType = "market-updated"
	EventIndicatorUpdated EventType = "indicator-updated"
	EventTradeOpened      EventType = "trade-opened"
	EventTradeClosed      EventType = "trade-closed"
	EventTradeDiscarded   EventType = "trade-discarded"
	EventPortfolioUpdated EventType = "portfolio-updated"
	EventStatsUpdated     EventType = "stats-updated"
	EventPauseTriggered   EventType = "pause-triggered"
	EventPauseLifted      EventType = "pause-lifted"
	EventCooldownAdd      EventType = "cooldown-add"
	EventCooldownRemove   EventType = "cooldown-remove"
	EventSettingsUpdated  EventType = "settings-updated"
)

// MarketUpdatedPayload is published after a feed batch replaced the coin snapshots.
type MarketUpdatedPayload struct {
	Symbols int `json:"symbols"`
}

// IndicatorUpdatedPayload carries the new sample of one symbol.
type IndicatorUpdatedPayload struct {
	Symbol string          `json:"symbol"`
	Sample IndicatorSample `json:"sample"`
}

// TradeOpenedPayload is a copy of the trade just inserted.
type TradeOpenedPayload struct {
	Trade ActiveTrade `json:"trade"`
}

// TradeClosedPayload describes a closed trade and the balance after realization.
type TradeClosedPayload struct {
	Closed     ClosedTrade `json:"closed"`
	NewBalance float64     `json:"new_balance"`
}

// TradeDiscardedPayload is a trade dropped without realizing pnl.
type TradeDiscardedPayload struct {
	Trade ActiveTrade `json:"trade"`
}

// PortfolioUpdatedPayload carries the new balance.
type PortfolioUpdatedPayload struct {
	Balance float64 `json:"balance"`
}

// StatsUpdatedPayload carries the new global stats.
type StatsUpdatedPayload struct {
	Stats GlobalStats `json:"stats"`
}

// PauseTriggeredPayload is published when the loss breaker trips.
type PauseTriggeredPayload struct {
	LossCount int       `json:"loss_count"`
	Until     time.Time `json:"until"`
}

// CooldownAddPayload asks persistence to store a cooldown. The store has already applied it.
type CooldownAddPayload struct {
	Entry CooldownEntry `json:"entry"`
}

// CooldownRemovePayload asks persistence to drop a cooldown.
type CooldownRemovePayload struct {
	Symbol string `json:"symbol"`
}

// SettingsUpdatedPayload carries a description of the changed setting.
type SettingsUpdatedPayload struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}
