package config

import (
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
)

// Publisher is the part of the event bus Settings needs.
type Publisher interface {
	Publish(eventType types.EventType, payload any)
}

// Settings is the runtime copy of the trading parameters.
// Every change is validated as a whole before it becomes visible and is broadcast as settings-updated.
type Settings struct {
	mu        sync.RWMutex
	trading   TradingConfig
	validate  *validator.Validate
	publisher Publisher
}

// NewSettings creates a Settings seeded from the loaded configuration. publisher may be nil.
func NewSettings(trading TradingConfig, publisher Publisher) *Settings {
	return &Settings{
		mu:        sync.RWMutex{},
		trading:   trading,
		validate:  validator.New(),
		publisher: publisher,
	}
}

// Trading returns a copy of the current trading parameters.
func (s *Settings) Trading() TradingConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.trading
}

func (s *Settings) update(field string, value any, mutate func(*TradingConfig)) error {
	s.mu.Lock()

	next := s.trading
	mutate(&next)

	if err := s.validate.Struct(next); err != nil {
		s.mu.Unlock()

		return errors.Wrapf(errors.ErrCodeInvalidParameter, err, "invalid value for %s", field)
	}

	s.trading = next
	s.mu.Unlock()

	if s.publisher != nil {
		s.publisher.Publish(types.EventSettingsUpdated, types.SettingsUpdatedPayload{Field: field, Value: value})
	}

	return nil
}

// SetAlertThreshold changes the RSI entry threshold.
func (s *Settings) SetAlertThreshold(v float64) error {
	return s.update("alert_threshold", v, func(t *TradingConfig) { t.AlertThreshold = v })
}

// SetCloseThreshold changes the RSI exit threshold.
func (s *Settings) SetCloseThreshold(v float64) error {
	return s.update("close_threshold", v, func(t *TradingConfig) { t.CloseThreshold = v })
}

// SetTakeProfitPercent changes the paper take-profit level.
func (s *Settings) SetTakeProfitPercent(v float64) error {
	return s.update("take_profit_percent", v, func(t *TradingConfig) { t.TakeProfitPercent = v })
}

// SetLeverage changes the leverage used for new trades.
func (s *Settings) SetLeverage(v int) error {
	return s.update("leverage", v, func(t *TradingConfig) { t.Leverage = v })
}

// SetMaxOpenTrades changes the concurrent trade cap.
func (s *Settings) SetMaxOpenTrades(v int) error {
	return s.update("max_open_trades", v, func(t *TradingConfig) { t.MaxOpenTrades = v })
}

// SetLossLimit changes how many losses trip the breaker.
func (s *Settings) SetLossLimit(v int) error {
	return s.update("loss_limit", v, func(t *TradingConfig) { t.LossLimit = v })
}

// SetDefaultCooldown changes the cooldown applied after a close.
func (s *Settings) SetDefaultCooldown(v time.Duration) error {
	return s.update("default_cooldown", v, func(t *TradingConfig) { t.DefaultCooldown = v })
}

// SetAmount changes the trade sizing policy.
func (s *Settings) SetAmount(amountType AmountType, value float64) error {
	return s.update("amount", map[string]any{"type": amountType, "value": value}, func(t *TradingConfig) {
		t.AmountType = amountType
		if amountType == AmountTypePercentage {
			t.PercentageAmount = value
		} else {
			t.FixedAmount = value
		}
	})
}

// SettingsUpdate is a partial update received from the control API. Nil fields are left unchanged.
type SettingsUpdate struct {
	AlertThreshold    *float64 `json:"alert_threshold,omitempty"`
	CloseThreshold    *float64 `json:"close_threshold,omitempty"`
	TakeProfitPercent *float64 `json:"take_profit_percent,omitempty"`
	Leverage          *int     `json:"leverage,omitempty"`
	MaxOpenTrades     *int     `json:"max_open_trades,omitempty"`
	LossLimit         *int     `json:"loss_limit,omitempty"`
	AmountType        *string  `json:"amount_type,omitempty"`
	AmountValue       *float64 `json:"amount_value,omitempty"`
}

// Apply applies every non-nil field through the typed setters, stopping at the first rejected value.
func (s *Settings) Apply(u SettingsUpdate) error {
	steps := []func() error{}

	if u.AlertThreshold != nil {
		steps = append(steps, func() error { return s.SetAlertThreshold(*u.AlertThreshold) })
	}

	if u.CloseThreshold != nil {
		steps = append(steps, func() error { return s.SetCloseThreshold(*u.CloseThreshold) })
	}

	if u.TakeProfitPercent != nil {
		steps = append(steps, func() error { return s.SetTakeProfitPercent(*u.TakeProfitPercent) })
	}

	if u.Leverage != nil {
		steps = append(steps, func() error { return s.SetLeverage(*u.Leverage) })
	}

	if u.MaxOpenTrades != nil {
		steps = append(steps, func() error { return s.SetMaxOpenTrades(*u.MaxOpenTrades) })
	}

	if u.LossLimit != nil {
		steps = append(steps, func() error { return s.SetLossLimit(*u.LossLimit) })
	}

	if u.AmountType != nil || u.AmountValue != nil {
		current := s.Trading()
		amountType := current.AmountType
		value := current.FixedAmount

		if u.AmountType != nil {
			amountType = AmountType(*u.AmountType)
		}

		if amountType == AmountTypePercentage {
			value = current.PercentageAmount
		}

		if u.AmountValue != nil {
			value = *u.AmountValue
		}

		steps = append(steps, func() error { return s.SetAmount(amountType, value) })
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	return nil
}
