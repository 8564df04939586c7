package utils

import (
	"github.com/shopspring/decimal"
)

// ShortQuantity returns the contract quantity for a short of the given margin and leverage at price,
// floored to the exchange quantity precision. It returns zero when the inputs cannot produce an order.
func ShortQuantity(margin float64, leverage int, price float64, quantityPrecision int) decimal.Decimal {
	if margin <= 0 || leverage <= 0 || price <= 0 {
		return decimal.Zero
	}

	notional := decimal.NewFromFloat(margin).Mul(decimal.NewFromInt(int64(leverage)))

	return RoundToDecimalPrecision(notional.Div(decimal.NewFromFloat(price)), quantityPrecision)
}

// RoundToDecimalPrecision floors the quantity to the specified decimal precision.
func RoundToDecimalPrecision(quantity decimal.Decimal, decimalPrecision int) decimal.Decimal {
	return quantity.RoundFloor(int32(decimalPrecision))
}

// RoundToTickSize rounds a price to the nearest multiple of the tick size. A zero tick leaves it unchanged.
func RoundToTickSize(price float64, tickSize string) (decimal.Decimal, error) {
	p := decimal.NewFromFloat(price)

	tick, err := decimal.NewFromString(tickSize)
	if err != nil {
		return decimal.Zero, err
	}

	if tick.IsZero() {
		return p, nil
	}

	return p.DivRound(tick, 0).Mul(tick), nil
}

// TakeProfitPrice is the trigger price of a short that closes at the given leveraged profit percent.
func TakeProfitPrice(entry float64, takeProfitPercent float64, leverage int) float64 {
	if leverage <= 0 {
		return entry
	}

	return entry * (1 - (takeProfitPercent/100)/float64(leverage))
}

// ShortPnL returns the leveraged pnl percent and the pnl in USDT of a short.
func ShortPnL(entry, current, margin float64, leverage int) (float64, float64) {
	if entry <= 0 {
		return 0, 0
	}

	move := (entry - current) / entry
	lev := float64(leverage)

	return move * lev * 100, margin * lev * move
}
