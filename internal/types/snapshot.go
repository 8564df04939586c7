package types

import "time"

// StateSnapshot is a deep copy of everything the state store holds, served to the control API.
type StateSnapshot struct {
	Time            time.Time                  `json:"time"`
	Coins           []CoinSnapshot             `json:"coins"`
	Indicators      map[string]IndicatorSample `json:"indicators"`
	Trades          []ActiveTrade              `json:"trades"`
	Cooldowns       []CooldownEntry            `json:"cooldowns"`
	Portfolio       Portfolio                  `json:"portfolio"`
	AvailableMargin float64                    `json:"available_margin"`
	Stats           GlobalStats                `json:"stats"`
	Controls        ControlFlags               `json:"controls"`
	PausedUntil     time.Time                  `json:"paused_until"`
	AlertLog        []AlertLogEntry            `json:"alert_log"`
	IndicatorStatus IndicatorSweepStatus       `json:"indicator_status"`
	Uptime          time.Duration              `json:"uptime"`
}
