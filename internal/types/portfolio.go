package types

// Portfolio holds the paper trading balance in USDT.
type Portfolio struct {
	Balance float64 `json:"balance" yaml:"balance"`
}

// GlobalStats are the running totals of realized paper results.
type GlobalStats struct {
	RealizedProfit float64 `json:"realized_profit" yaml:"realized_profit"`
	// RealizedLoss is stored as a positive number.
	RealizedLoss float64 `json:"realized_loss" yaml:"realized_loss"`
	Wins         int     `json:"wins" yaml:"wins"`
	Losses       int     `json:"losses" yaml:"losses"`
}

// NetPnL is profit minus loss.
func (g GlobalStats) NetPnL() float64 {
	return g.RealizedProfit - g.RealizedLoss
}

// WinRate is wins over closed trades, 0 when nothing closed yet.
func (g GlobalStats) WinRate() float64 {
	total := g.Wins + g.Losses
	if total == 0 {
		return 0
	}

	return float64(g.Wins) / float64(total)
}
