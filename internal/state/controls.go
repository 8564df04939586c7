package state

import (
	"fmt"
	"time"

	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	"go.uber.org/zap"
)

// CanOpenNewTrade reports whether the engine may start an entry now.
func (s *Store) CanOpenNewTrade() bool {
	trading := s.settings.Trading()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	return s.controls.TradeExecutionEnabled &&
		!s.controls.GlobalPauseActive &&
		!now.Before(s.pausedUntil) &&
		s.slotsTakenLocked("") < trading.MaxOpenTrades &&
		now.Sub(s.lastOpen) >= trading.OpenRateLimit
}

// ToggleControl pauses or resumes a switch. ControlAll applies to every switch except the global pause.
// Resuming the global pause lifts the breaker; pausing it by hand is refused.
func (s *Store) ToggleControl(name types.ControlName, action types.ControlAction) error {
	value := action == types.ActionResume

	if name == types.ControlGlobalPause {
		if action != types.ActionResume {
			return errors.New(errors.ErrCodeInvalidAction, "the global pause can only be lifted")
		}

		s.LiftGlobalPause()

		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if name == types.ControlAll {
		for _, n := range s.controls.Names() {
			if n == types.ControlGlobalPause {
				continue
			}

			_ = s.controls.Set(n, value)
		}
	} else if err := s.controls.Set(name, value); err != nil {
		return err
	}

	s.addAlertLogLocked("CONTROL", fmt.Sprintf("%s %s", name, action))

	return nil
}

// PausedUntil returns when the breaker lifts. Zero when inactive.
func (s *Store) PausedUntil() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pausedUntil
}

// ActivateGlobalPause trips the loss breaker. Trade execution is switched off and an automatic
// lift is scheduled. Tripping an active breaker does nothing.
func (s *Store) ActivateGlobalPause(lossCount int) bool {
	trading := s.settings.Trading()

	s.mu.Lock()

	if s.controls.GlobalPauseActive {
		s.mu.Unlock()

		return false
	}

	until := s.now().Add(trading.PauseDuration)
	s.armPauseLocked(until)
	s.addAlertLogLocked("GLOBAL PAUSE", fmt.Sprintf("%d losing trades, paused until %s", lossCount, until.Format("2006-01-02 15:04")))
	s.mu.Unlock()

	s.logger.Warn("Global pause activated",
		zap.Int("loss_count", lossCount),
		zap.Time("until", until),
	)

	s.publish(pendingEvent{types.EventPauseTriggered, types.PauseTriggeredPayload{LossCount: lossCount, Until: until}})

	return true
}

// RestoreGlobalPause re-arms a breaker persisted by an earlier run. Past deadlines are ignored.
func (s *Store) RestoreGlobalPause(until time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.now().Before(until) || s.controls.GlobalPauseActive {
		return false
	}

	s.armPauseLocked(until)
	s.logger.Info("Global pause restored", zap.Time("until", until))

	return true
}

func (s *Store) armPauseLocked(until time.Time) {
	s.controls.GlobalPauseActive = true
	s.controls.TradeExecutionEnabled = false
	s.pausedUntil = until

	if s.pauseTimer != nil {
		s.pauseTimer.Stop()
	}

	s.pauseTimer = time.AfterFunc(until.Sub(s.now()), func() {
		s.LiftGlobalPause()
	})
}

// LiftGlobalPause clears the breaker. Trade execution stays off until an operator resumes it.
func (s *Store) LiftGlobalPause() bool {
	s.mu.Lock()

	if !s.controls.GlobalPauseActive {
		s.mu.Unlock()

		return false
	}

	s.controls.GlobalPauseActive = false
	s.pausedUntil = time.Time{}

	if s.pauseTimer != nil {
		s.pauseTimer.Stop()
		s.pauseTimer = nil
	}

	s.addAlertLogLocked("GLOBAL PAUSE", "lifted, trade execution must be resumed manually")
	s.mu.Unlock()

	s.logger.Info("Global pause lifted")
	s.publish(pendingEvent{types.EventPauseLifted, nil})

	return true
}

// Stop cancels the pending breaker timer. Used at shutdown.
func (s *Store) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pauseTimer != nil {
		s.pauseTimer.Stop()
		s.pauseTimer = nil
	}
}
