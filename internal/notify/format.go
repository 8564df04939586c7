package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-shortbot/internal/types"
)

// FormatTradeOpened renders the message for a new short.
func FormatTradeOpened(trade types.ActiveTrade) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<b>%s SHORT: %s</b>\n", strings.ToUpper(string(trade.Source)), html.EscapeString(trade.Symbol))
	fmt.Fprintf(&b, "Alert: #%d\n", trade.AlertNumber)
	fmt.Fprintf(&b, "Entry Price: <code>$%.5f</code>\n", trade.EntryPrice)
	fmt.Fprintf(&b, "Entry RSI: %s\n", indicatorText(trade.EntryIndicator))
	fmt.Fprintf(&b, "Trade Amount: $%.2f (Leveraged: $%.2f)", trade.Amount, trade.LeveragedAmount())

	return b.String()
}

// FormatTradeClosed renders the message for a closed short.
func FormatTradeClosed(closed types.ClosedTrade, balance float64) string {
	trade := closed.Trade

	var b strings.Builder

	fmt.Fprintf(&b, "<b>SHORT CLOSED: %s</b> (%+.2f%%)\n", html.EscapeString(trade.Symbol), trade.PnLPercent)
	fmt.Fprintf(&b, "Reason: %s\n", html.EscapeString(closed.Reason))
	fmt.Fprintf(&b, "P/L: %.2f%% ($%.4f)\n", trade.PnLPercent, trade.PnLUSDT)
	fmt.Fprintf(&b, "Entry Price: <code>$%.8f</code> (RSI: %s)\n", trade.EntryPrice, indicatorText(trade.EntryIndicator))
	fmt.Fprintf(&b, "Close Price: <code>$%.8f</code> (RSI: %s)\n", closed.ClosePrice, indicatorText(closed.ExitIndicator))
	fmt.Fprintf(&b, "New Portfolio Balance: $%.2f", balance)

	return b.String()
}

// FormatPauseTriggered renders the breaker message.
func FormatPauseTriggered(p types.PauseTriggeredPayload) string {
	return fmt.Sprintf("<b>BOT PAUSED: %d losing trades</b>\nTrading is paused until %s UTC or until resumed.",
		p.LossCount, p.Until.UTC().Format("2006-01-02 15:04"))
}

func indicatorText(o optional.Option[float64]) string {
	if v, err := o.Take(); err == nil {
		return fmt.Sprintf("%.2f", v)
	}

	return "N/A"
}
