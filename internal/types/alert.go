package types

import "time"

// AlertLogCapacity is the number of alert lines kept in memory.
const AlertLogCapacity = 50

// AlertLogEntry is one human readable line of the activity log.
type AlertLogEntry struct {
	Time    time.Time `json:"time"`
	Symbol  string    `json:"symbol"`
	Message string    `json:"message"`
}

// IndicatorSweepStatus reports what the indicator sampler is doing.
type IndicatorSweepStatus struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	CurrentSymbol string `json:"current_symbol"`
}
