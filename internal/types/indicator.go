package types

import (
	"encoding/json"
	"strconv"
	"time"
)

// IndicatorStatus describes what an IndicatorSample holds.
type IndicatorStatus string

const (
	// IndicatorStatusValue means the sample carries a computed oscillator value.
	IndicatorStatusValue IndicatorStatus = "value"

	// IndicatorStatusInsufficientHistory means the symbol has fewer closes than the RSI length.
	IndicatorStatusInsufficientHistory IndicatorStatus = "insufficient_history"

	// IndicatorStatusUnavailable means the last fetch failed.
	IndicatorStatusUnavailable IndicatorStatus = "unavailable"
)

const (
	insufficientHistoryLabel = "New_Coin"
	unavailableLabel         = "N/A"
)

// IndicatorSample is the latest oscillator reading for a symbol. Only the newest sample is kept.
type IndicatorSample struct {
	Status    IndicatorStatus `json:"status" yaml:"status"`
	Value     float64         `json:"value" yaml:"value"`
	UpdatedAt time.Time       `json:"updated_at" yaml:"updated_at"`
}

// NewIndicatorValue returns a numeric sample.
func NewIndicatorValue(value float64, at time.Time) IndicatorSample {
	return IndicatorSample{Status: IndicatorStatusValue, Value: value, UpdatedAt: at}
}

// NewInsufficientHistory returns the sentinel sample for symbols without enough klines.
func NewInsufficientHistory(at time.Time) IndicatorSample {
	return IndicatorSample{Status: IndicatorStatusInsufficientHistory, Value: 0, UpdatedAt: at}
}

// NewIndicatorUnavailable returns the sentinel sample for failed fetches.
func NewIndicatorUnavailable(at time.Time) IndicatorSample {
	return IndicatorSample{Status: IndicatorStatusUnavailable, Value: 0, UpdatedAt: at}
}

// Numeric returns the value and true when the sample carries a number.
func (s IndicatorSample) Numeric() (float64, bool) {
	if s.Status != IndicatorStatusValue {
		return 0, false
	}

	return s.Value, true
}

// String renders the value with two decimals, or the sentinel label.
func (s IndicatorSample) String() string {
	switch s.Status {
	case IndicatorStatusValue:
		return strconv.FormatFloat(s.Value, 'f', 2, 64)
	case IndicatorStatusInsufficientHistory:
		return insufficientHistoryLabel
	default:
		return unavailableLabel
	}
}

// MarshalJSON emits a bare number for numeric samples and the sentinel label otherwise,
// which is what dashboards expect in the rsi column.
func (s IndicatorSample) MarshalJSON() ([]byte, error) {
	if v, ok := s.Numeric(); ok {
		return json.Marshal(v)
	}

	return json.Marshal(s.String())
}
