package types

import "time"

// CooldownEntry blocks new entries on a symbol until Expiry.
type CooldownEntry struct {
	Symbol string    `json:"symbol" yaml:"symbol"`
	Reason string    `json:"reason" yaml:"reason"`
	Start  time.Time `json:"start" yaml:"start"`
	Expiry time.Time `json:"expiry" yaml:"expiry"`
}

// Active reports whether the cooldown still applies at now.
func (c CooldownEntry) Active(now time.Time) bool {
	return now.Before(c.Expiry)
}

// Remaining is the time left before the entry expires, never negative.
func (c CooldownEntry) Remaining(now time.Time) time.Duration {
	if !c.Active(now) {
		return 0
	}

	return c.Expiry.Sub(now)
}
