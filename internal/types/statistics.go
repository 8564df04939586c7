package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type TradeHoldingTime struct {
	// Minimum holding time of a trade in seconds
	Min int `yaml:"min" json:"min"`
	// Maximum holding time of a trade in seconds
	Max int `yaml:"max" json:"max"`
	// Average holding time of a trade in seconds
	Avg int `yaml:"avg" json:"avg"`
}

type TradePnl struct {
	// Realized PnL in USDT, summed over closed paper trades.
	RealizedPnL float64 `yaml:"realized_pnl" json:"realized_pnl"`
	// Unrealized PnL of the positions still open.
	UnrealizedPnL float64 `yaml:"unrealized_pnl" json:"unrealized_pnl"`
	// Total PnL. By adding RealizedPnL and UnrealizedPnL.
	TotalPnL float64 `yaml:"total_pnl" json:"total_pnl"`
	// Worst single closed trade.
	MaximumLoss float64 `yaml:"maximum_loss" json:"maximum_loss"`
	// Best single closed trade.
	MaximumProfit float64 `yaml:"maximum_profit" json:"maximum_profit"`
}

type TradeResult struct {
	NumberOfTrades        int     `yaml:"number_of_trades" json:"number_of_trades"`
	NumberOfWinningTrades int     `yaml:"number_of_winning_trades" json:"number_of_winning_trades"`
	NumberOfLosingTrades  int     `yaml:"number_of_losing_trades" json:"number_of_losing_trades"`
	WinRate               float64 `yaml:"win_rate" json:"win_rate"`
	// Largest fall of cumulative realized pnl from its peak.
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"`
}

// SessionStats summarizes the trades closed during one bot session or one day of it.
type SessionStats struct {
	// ID is the unique identifier for this session.
	ID string `yaml:"id" json:"id"`

	// Date is the date of this record in YYYY-MM-DD format.
	Date string `yaml:"date" json:"date"`

	SessionStart time.Time `yaml:"session_start" json:"session_start"`
	LastUpdated  time.Time `yaml:"last_updated" json:"last_updated"`

	// Symbols that had at least one closed trade.
	Symbols []string `yaml:"symbols" json:"symbols"`

	// CloseReasons counts closed trades per reason.
	CloseReasons map[string]int `yaml:"close_reasons" json:"close_reasons"`

	TradeResult      TradeResult      `yaml:"trade_result" json:"trade_result"`
	TradePnl         TradePnl         `yaml:"trade_pnl" json:"trade_pnl"`
	TradeHoldingTime TradeHoldingTime `yaml:"trade_holding_time" json:"trade_holding_time"`
}

// DailySessionStats contains both daily and cumulative statistics for a session.
type DailySessionStats struct {
	Daily      SessionStats `yaml:"daily" json:"daily"`
	Cumulative SessionStats `yaml:"cumulative" json:"cumulative"`
}

// WriteSessionStats writes session statistics to a YAML file.
func WriteSessionStats(path string, stats DailySessionStats) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal session stats to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session stats to file: %w", err)
	}

	return nil
}

// ReadSessionStats reads session statistics from a YAML file.
func ReadSessionStats(path string) (DailySessionStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DailySessionStats{}, fmt.Errorf("failed to read session stats file: %w", err)
	}

	var stats DailySessionStats
	if err := yaml.Unmarshal(data, &stats); err != nil {
		return DailySessionStats{}, fmt.Errorf("failed to unmarshal session stats: %w", err)
	}

	return stats, nil
}
