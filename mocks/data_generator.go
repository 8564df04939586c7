package mocks

import (
	"math"
	"math/rand"

	"github.com/rxtech-lab/argo-shortbot/internal/types"
)

// DataGenerator generates kline closes and ticker batches for tests.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a new DataGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures a close series.
type GeneratorConfig struct {
	// Count is the number of closes to generate
	Count int
	// InitialPrice is the first close
	InitialPrice float64
	// Volatility controls the move per kline (0.01 = 1%)
	Volatility float64
	// Trend is the drift per kline. A pumping coin has a positive trend.
	Trend float64
}

// DefaultConfig returns an hourly-kline sized random walk without drift.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Count:        100,
		InitialPrice: 1.0,
		Volatility:   0.01,
		Trend:        0,
	}
}

// PumpConfig returns a series that climbs steadily, the shape that pushes RSI above the alert threshold.
func PumpConfig() GeneratorConfig {
	return GeneratorConfig{
		Count:        100,
		InitialPrice: 0.05,
		Volatility:   0.002,
		Trend:        0.02,
	}
}

// Closes generates a close series, oldest first, following a geometric Brownian motion.
func (g *DataGenerator) Closes(config GeneratorConfig) []float64 {
	closes := make([]float64, config.Count)
	price := config.InitialPrice

	for i := range closes {
		// Box-Muller transform for a normal sample
		u1 := 1 - g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		next := price * (1 + config.Volatility*z + config.Trend)
		if next <= 0 {
			next = price * 0.99
		}

		closes[i] = roundToDecimals(next, 8)
		price = next
	}

	return closes
}

// Tickers generates one all-market ticker batch. Each symbol gets a price around basePrice
// and a 24h change between minChange and maxChange percent.
func (g *DataGenerator) Tickers(symbols []string, basePrice, minChange, maxChange float64) []types.TickerUpdate {
	batch := make([]types.TickerUpdate, 0, len(symbols))

	for _, symbol := range symbols {
		price := basePrice * (0.5 + g.rng.Float64())
		change := minChange + g.rng.Float64()*(maxChange-minChange)

		batch = append(batch, types.TickerUpdate{
			Symbol:    symbol,
			Price:     roundToDecimals(price, 8),
			Change24h: roundToDecimals(change, 2),
			High24h:   roundToDecimals(price*(1+g.rng.Float64()*0.05), 8),
		})
	}

	return batch
}

// roundToDecimals rounds a float64 to the specified number of decimal places.
func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(val*pow) / pow
}
