package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-shortbot/internal/eventbus"
	"github.com/rxtech-lab/argo-shortbot/internal/logger"
	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"github.com/rxtech-lab/argo-shortbot/internal/version"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	"go.uber.org/zap"
)

// Bus is the part of the event bus the subscriber registers on.
type Bus interface {
	Subscribe(eventType types.EventType, handler eventbus.Handler)
}

// StateSource is the part of the state store that is flushed to the state file.
type StateSource interface {
	Portfolio() types.Portfolio
	Stats() types.GlobalStats
	Peaks() map[string]types.PeakEntry
	Uptime() time.Duration
	PausedUntil() time.Time
}

// Subscriber writes state changes announced on the bus to the ledger, the cooldown store
// and the state file. In-memory state is already updated when the events arrive.
type Subscriber struct {
	ledger    *TradeLedger
	cooldowns *CooldownStore
	file      *StateFile
	source    StateSource
	logger    *logger.Logger
	now       func() time.Time
	flushMu   sync.Mutex
}

// NewSubscriber creates a subscriber. Call Register to attach it to a bus.
func NewSubscriber(ledger *TradeLedger, cooldowns *CooldownStore, file *StateFile, source StateSource, log *logger.Logger) *Subscriber {
	return &Subscriber{
		ledger:    ledger,
		cooldowns: cooldowns,
		file:      file,
		source:    source,
		logger:    log,
		now:       time.Now,
		flushMu:   sync.Mutex{},
	}
}

// Register subscribes every handler.
func (s *Subscriber) Register(bus Bus) {
	bus.Subscribe(types.EventTradeOpened, s.onTradeOpened)
	bus.Subscribe(types.EventTradeClosed, s.onTradeClosed)
	bus.Subscribe(types.EventTradeDiscarded, s.onTradeDiscarded)
	bus.Subscribe(types.EventCooldownAdd, s.onCooldownAdd)
	bus.Subscribe(types.EventCooldownRemove, s.onCooldownRemove)

	for _, t := range []types.EventType{
		types.EventPortfolioUpdated,
		types.EventStatsUpdated,
		types.EventPauseTriggered,
		types.EventPauseLifted,
	} {
		bus.Subscribe(t, s.onStateChanged)
	}
}

// Flush writes the current portfolio, stats, peaks, uptime and breaker deadline to the state file.
func (s *Subscriber) Flush() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	pausedUntil := s.source.PausedUntil()
	if !pausedUntil.IsZero() {
		pausedUntil = pausedUntil.UTC()
	}

	return s.file.Save(PersistedState{
		Portfolio:     s.source.Portfolio(),
		Stats:         s.source.Stats(),
		Peaks:         s.source.Peaks(),
		UptimeSeconds: s.source.Uptime().Seconds(),
		PausedUntil:   pausedUntil,
		SavedAt:       s.now().UTC(),
		BotVersion:    version.GetVersion(),
	})
}

func (s *Subscriber) onTradeOpened(ctx context.Context, event eventbus.Event) error {
	payload, ok := event.Payload.(types.TradeOpenedPayload)
	if !ok {
		return unexpectedPayload(event)
	}

	return s.ledger.RecordOpened(ctx, payload.Trade)
}

func (s *Subscriber) onTradeClosed(ctx context.Context, event eventbus.Event) error {
	payload, ok := event.Payload.(types.TradeClosedPayload)
	if !ok {
		return unexpectedPayload(event)
	}

	return s.ledger.RecordClosed(ctx, payload.Closed)
}

func (s *Subscriber) onTradeDiscarded(ctx context.Context, event eventbus.Event) error {
	payload, ok := event.Payload.(types.TradeDiscardedPayload)
	if !ok {
		return unexpectedPayload(event)
	}

	return s.ledger.RecordDiscarded(ctx, payload.Trade, event.Time)
}

func (s *Subscriber) onCooldownAdd(ctx context.Context, event eventbus.Event) error {
	payload, ok := event.Payload.(types.CooldownAddPayload)
	if !ok {
		return unexpectedPayload(event)
	}

	return s.cooldowns.Upsert(ctx, payload.Entry)
}

func (s *Subscriber) onCooldownRemove(ctx context.Context, event eventbus.Event) error {
	payload, ok := event.Payload.(types.CooldownRemovePayload)
	if !ok {
		return unexpectedPayload(event)
	}

	return s.cooldowns.Delete(ctx, payload.Symbol)
}

func (s *Subscriber) onStateChanged(_ context.Context, event eventbus.Event) error {
	if err := s.Flush(); err != nil {
		s.logger.Error("Failed to flush state file", zap.String("event", string(event.Type)), zap.Error(err))

		return err
	}

	return nil
}

func unexpectedPayload(event eventbus.Event) error {
	return errors.Newf(errors.ErrCodeInvalidParameter, "unexpected payload %T for %s", event.Payload, event.Type)
}
