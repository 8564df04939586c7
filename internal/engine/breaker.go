package engine

import (
	"context"

	"go.uber.org/zap"
)

// ScanLosses counts the losing trades in the loss window and trips the global pause at the limit.
// It returns whether this scan activated the pause.
func (e *Engine) ScanLosses(ctx context.Context) (bool, error) {
	trading := e.settings.Trading()
	since := e.now().Add(-trading.LossWindow)

	count, err := e.losses.CountLosses(ctx, since)
	if err != nil {
		e.logger.Error("Loss scan failed", zap.Error(err))

		return false, err
	}

	if count < trading.LossLimit {
		return false, nil
	}

	e.logger.Debug("Loss limit reached", zap.Int("loss_count", count), zap.Int("loss_limit", trading.LossLimit))

	return e.store.ActivateGlobalPause(count), nil
}
