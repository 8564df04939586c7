package indicator

import (
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
)

// RSI computes the Relative Strength Index with Wilder's smoothing over a series of closes.
type RSI struct {
	period int
}

// NewRSI creates an RSI with the given period.
func NewRSI(period int) (*RSI, error) {
	if period <= 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "period must be greater than 1, got %d", period)
	}

	return &RSI{period: period}, nil
}

// Period returns the configured period.
func (r *RSI) Period() int {
	return r.period
}

// MinCloses is the number of closes needed for one value.
func (r *RSI) MinCloses() int {
	return r.period + 1
}

// Calculate returns the RSI of the last close. closes are ordered oldest first.
func (r *RSI) Calculate(closes []float64) (float64, error) {
	if len(closes) < r.MinCloses() {
		return 0, errors.Newf(errors.ErrCodeInsufficientHistory,
			"need %d closes for RSI(%d), got %d", r.MinCloses(), r.period, len(closes))
	}

	gains := make([]float64, 0, len(closes)-1)
	losses := make([]float64, 0, len(closes)-1)

	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -change)
		}
	}

	// Seed with a simple average, then apply Wilder's smoothing.
	avgGain := 0.0
	avgLoss := 0.0

	for i := 0; i < r.period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}

	avgGain /= float64(r.period)
	avgLoss /= float64(r.period)

	for i := r.period; i < len(gains); i++ {
		avgGain = (avgGain*float64(r.period-1) + gains[i]) / float64(r.period)
		avgLoss = (avgLoss*float64(r.period-1) + losses[i]) / float64(r.period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil
		}

		return 100, nil
	}

	rs := avgGain / avgLoss

	return 100 - (100 / (1 + rs)), nil
}
