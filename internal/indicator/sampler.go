package indicator

import (
	"context"
	"fmt"
	"time"

	"github.com/rxtech-lab/argo-shortbot/internal/config"
	"github.com/rxtech-lab/argo-shortbot/internal/logger"
	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"github.com/rxtech-lab/argo-shortbot/internal/utils"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	"go.uber.org/zap"
)

// Sweep status values reported to the store.
const (
	StatusIdle   = "idle"
	StatusActive = "active"
	StatusPaused = "paused"
	StatusError  = "error"
)

// KlineSource returns close prices of the most recent klines, oldest first.
type KlineSource interface {
	Closes(ctx context.Context, symbol string, interval string, limit int) ([]float64, error)
}

// SampleStore is the part of the state store the sampler reads from and writes to.
type SampleStore interface {
	SymbolsToMonitor() []string
	UpdateIndicator(symbol string, sample types.IndicatorSample)
	SetIndicatorStatus(status, message, currentSymbol string)
	Controls() types.ControlFlags
}

// Sampler sweeps the monitored symbols and pushes a fresh RSI sample for each one.
type Sampler struct {
	source KlineSource
	store  SampleStore
	rsi    *RSI
	cfg    config.IndicatorConfig
	sweep  time.Duration
	pause  time.Duration
	logger *logger.Logger
	now    func() time.Time
}

// NewSampler creates a sampler. sweep is the wait between two sweeps and pause the wait between symbols.
func NewSampler(
	source KlineSource,
	store SampleStore,
	cfg config.IndicatorConfig,
	intervals config.IntervalConfig,
	log *logger.Logger,
) (*Sampler, error) {
	rsi, err := NewRSI(cfg.Length)
	if err != nil {
		return nil, err
	}

	return &Sampler{
		source: source,
		store:  store,
		rsi:    rsi,
		cfg:    cfg,
		sweep:  intervals.IndicatorSweep,
		pause:  intervals.SymbolPause,
		logger: log,
		now:    time.Now,
	}, nil
}

// Run sweeps until ctx is done. A failing sweep is logged and the loop goes on.
func (s *Sampler) Run(ctx context.Context) error {
	s.logger.Info("Indicator sampler started", zap.Int("rsi_length", s.rsi.Period()))

	for {
		s.safeSweep(ctx)

		if !sleepCtx(ctx, s.sweep) {
			return nil
		}
	}
}

func (s *Sampler) safeSweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Indicator sweep panicked", zap.Any("panic", r))
			s.store.SetIndicatorStatus(StatusError, fmt.Sprintf("Critical Error: %v", r), "")
		}
	}()

	s.Sweep(ctx)
}

// Sweep samples every monitored symbol once and returns how many were updated.
func (s *Sampler) Sweep(ctx context.Context) int {
	if !s.store.Controls().IndicatorEnabled {
		s.store.SetIndicatorStatus(StatusPaused, "Indicator sampling paused by user.", "")

		return 0
	}

	symbols := s.store.SymbolsToMonitor()
	if len(symbols) == 0 {
		s.store.SetIndicatorStatus(StatusIdle, "No coins to check.", "")

		return 0
	}

	updated := 0

	for i, symbol := range symbols {
		if ctx.Err() != nil {
			return updated
		}

		if !s.store.Controls().IndicatorEnabled {
			s.store.SetIndicatorStatus(StatusPaused, "Indicator sampling paused by user.", "")

			return updated
		}

		s.store.SetIndicatorStatus(StatusActive, fmt.Sprintf("Scanning %d coins (%d/%d)", len(symbols), i+1, len(symbols)), symbol)

		if sample, ok := s.Sample(ctx, symbol); ok {
			s.store.UpdateIndicator(symbol, sample)
			updated++
		}

		if !sleepCtx(ctx, s.pause) {
			return updated
		}
	}

	s.store.SetIndicatorStatus(StatusIdle, "Cycle complete. Waiting...", "")

	return updated
}

// Sample fetches klines for one symbol and computes its RSI.
// It returns false when the fetch kept failing with transient errors; the previous sample then stays.
func (s *Sampler) Sample(ctx context.Context, symbol string) (types.IndicatorSample, bool) {
	policy := utils.RetryPolicy{Retries: s.cfg.Retries, BaseDelay: s.cfg.RetryBase, CallTimeout: s.cfg.CallTimeout}

	closes, err := utils.Retry(ctx, policy, func(ctx context.Context) ([]float64, error) {
		return s.source.Closes(ctx, symbol, s.cfg.KlineInterval, s.cfg.KlineLimit)
	})
	if err != nil {
		if errors.IsTransient(err) || ctx.Err() != nil {
			s.logger.Warn("Indicator fetch failed, skipping symbol for this cycle",
				zap.String("symbol", symbol), zap.Error(err))

			return types.IndicatorSample{}, false //nolint:exhaustruct // no sample
		}

		s.logger.Warn("Indicator unavailable", zap.String("symbol", symbol), zap.Error(err))

		return types.NewIndicatorUnavailable(s.now()), true
	}

	value, err := s.rsi.Calculate(closes)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeInsufficientHistory) {
			return types.NewInsufficientHistory(s.now()), true
		}

		s.logger.Warn("RSI calculation failed", zap.String("symbol", symbol), zap.Error(err))

		return types.NewIndicatorUnavailable(s.now()), true
	}

	return types.NewIndicatorValue(value, s.now()), true
}

// sleepCtx waits for d and reports false when ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
