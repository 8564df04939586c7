package types

import (
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
)

// ControlName identifies one operator switch.
type ControlName string

const (
	ControlFeed           ControlName = "feed_enabled"
	ControlIndicator      ControlName = "indicator_enabled"
	ControlTrading        ControlName = "trading_enabled"
	ControlNotifications  ControlName = "notifications_enabled"
	ControlMonitorAll     ControlName = "monitor_all"
	ControlGlobalPause    ControlName = "global_pause_active"
	ControlTradeExecution ControlName = "trade_execution_enabled"

	// ControlAll addresses every switch except the global pause.
	ControlAll ControlName = "all"
)

// ControlAction is what the operator wants done with a switch.
type ControlAction string

const (
	ActionPause  ControlAction = "pause"
	ActionResume ControlAction = "resume"
)

// ParseControlAction validates an action received from the API.
func ParseControlAction(s string) (ControlAction, error) {
	switch ControlAction(s) {
	case ActionPause, ActionResume:
		return ControlAction(s), nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidAction, "unknown control action %q", s)
	}
}

// ControlFlags are the operator switches of the bot.
type ControlFlags struct {
	FeedEnabled           bool `json:"feed_enabled" yaml:"feed_enabled"`
	IndicatorEnabled      bool `json:"indicator_enabled" yaml:"indicator_enabled"`
	TradingEnabled        bool `json:"trading_enabled" yaml:"trading_enabled"`
	NotificationsEnabled  bool `json:"notifications_enabled" yaml:"notifications_enabled"`
	MonitorAll            bool `json:"monitor_all" yaml:"monitor_all"`
	GlobalPauseActive     bool `json:"global_pause_active" yaml:"global_pause_active"`
	TradeExecutionEnabled bool `json:"trade_execution_enabled" yaml:"trade_execution_enabled"`
}

// DefaultControlFlags is the state at startup: market data flows, nothing trades.
func DefaultControlFlags() ControlFlags {
	return ControlFlags{
		FeedEnabled:           true,
		IndicatorEnabled:      true,
		TradingEnabled:        false,
		NotificationsEnabled:  false,
		MonitorAll:            true,
		GlobalPauseActive:     false,
		TradeExecutionEnabled: false,
	}
}

// field returns a pointer to the named switch.
func (c *ControlFlags) field(name ControlName) (*bool, error) {
	switch name {
	case ControlFeed:
		return &c.FeedEnabled, nil
	case ControlIndicator:
		return &c.IndicatorEnabled, nil
	case ControlTrading:
		return &c.TradingEnabled, nil
	case ControlNotifications:
		return &c.NotificationsEnabled, nil
	case ControlMonitorAll:
		return &c.MonitorAll, nil
	case ControlGlobalPause:
		return &c.GlobalPauseActive, nil
	case ControlTradeExecution:
		return &c.TradeExecutionEnabled, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidControl, "unknown control %q", name)
	}
}

// Get returns the value of a named switch.
func (c ControlFlags) Get(name ControlName) (bool, error) {
	f, err := c.field(name)
	if err != nil {
		return false, err
	}

	return *f, nil
}

// Set assigns a named switch.
func (c *ControlFlags) Set(name ControlName, value bool) error {
	f, err := c.field(name)
	if err != nil {
		return err
	}

	*f = value

	return nil
}

// Names lists every switch in display order.
func (ControlFlags) Names() []ControlName {
	return []ControlName{
		ControlFeed,
		ControlIndicator,
		ControlTrading,
		ControlNotifications,
		ControlMonitorAll,
		ControlGlobalPause,
		ControlTradeExecution,
	}
}
