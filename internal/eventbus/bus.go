// Package eventbus is the in-process publish/subscribe hub between the state store,
// the trading engine and the persistence and notification adapters.
//
// Publish appends to an unbounded FIFO queue and never blocks. A single dispatch loop drains the
// queue in order and hands each (event, handler) pair to the worker pool of the event type.
// Pools have a bounded job queue, so a slow consumer stalls the dispatch loop instead of
// the publisher, and handlers of one type never starve another type.
package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-shortbot/internal/logger"
	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"go.uber.org/zap"
)

// Event is one published message.
type Event struct {
	ID      string
	Type    types.EventType
	Time    time.Time
	Payload any
}

// Handler consumes an event. A returned error is logged and otherwise ignored.
type Handler func(ctx context.Context, event Event) error

// Option configures a Bus.
type Option func(*Bus)

// WithWorkers sets the number of workers per event type. Only a single worker keeps events of a
// type in publish order; with more, handlers of one type run concurrently and may finish in any order.
func WithWorkers(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithPoolQueue sets the job queue length of each worker pool.
func WithPoolQueue(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.poolQueue = n
		}
	}
}

type job struct {
	event   Event
	handler Handler
}

type pool struct {
	jobs chan job
}

// Bus is the event bus. The zero value is not usable, call New.
type Bus struct {
	handlersMu sync.RWMutex
	handlers   map[types.EventType][]Handler

	queueMu sync.Mutex
	queue   []Event
	closed  bool
	signal  chan struct{}

	pools     map[types.EventType]*pool
	workers   int
	poolQueue int
	workerWg  sync.WaitGroup

	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
	logger  *logger.Logger
}

// New creates a bus and starts its dispatch loop.
func New(log *logger.Logger, opts ...Option) *Bus {
	ctx, cancel := context.WithCancel(context.Background())

	b := &Bus{
		handlersMu: sync.RWMutex{},
		handlers:   make(map[types.EventType][]Handler),
		queueMu:    sync.Mutex{},
		queue:      nil,
		closed:     false,
		signal:     make(chan struct{}, 1),
		pools:      make(map[types.EventType]*pool),
		workers:    1,
		poolQueue:  256,
		workerWg:   sync.WaitGroup{},
		ctx:        ctx,
		cancel:     cancel,
		stopped:    make(chan struct{}),
		logger:     log,
	}

	for _, opt := range opts {
		opt(b)
	}

	go b.dispatch()

	return b
}

// Subscribe registers a handler for an event type. Handlers of one type run in no particular order.
func (b *Bus) Subscribe(eventType types.EventType, handler Handler) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish enqueues an event and returns immediately. Events published after Close are dropped.
func (b *Bus) Publish(eventType types.EventType, payload any) {
	event := Event{
		ID:      uuid.NewString(),
		Type:    eventType,
		Time:    time.Now(),
		Payload: payload,
	}

	b.queueMu.Lock()
	if b.closed {
		b.queueMu.Unlock()
		b.logger.Warn("Event dropped after bus close", zap.String("event", string(eventType)))

		return
	}

	b.queue = append(b.queue, event)
	b.queueMu.Unlock()

	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// Pending returns the number of events not yet handed to a worker pool.
func (b *Bus) Pending() int {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()

	return len(b.queue)
}

// Close stops accepting events, drains the queue and waits for in-flight handlers.
// If ctx ends first the handler context is cancelled and ctx.Err() is returned.
func (b *Bus) Close(ctx context.Context) error {
	b.queueMu.Lock()
	if b.closed {
		b.queueMu.Unlock()
		<-b.stopped

		return nil
	}

	b.closed = true
	b.queueMu.Unlock()

	select {
	case b.signal <- struct{}{}:
	default:
	}

	select {
	case <-b.stopped:
		b.cancel()

		return nil
	case <-ctx.Done():
		b.cancel()

		return ctx.Err()
	}
}

func (b *Bus) dispatch() {
	defer func() {
		for _, p := range b.pools {
			close(p.jobs)
		}

		b.workerWg.Wait()
		close(b.stopped)
	}()

	for {
		event, ok, closed := b.next()
		if ok {
			b.route(event)

			continue
		}

		if closed {
			return
		}

		<-b.signal
	}
}

// next pops the oldest event. closed is true when the bus is closed and the queue is empty.
func (b *Bus) next() (Event, bool, bool) {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()

	if len(b.queue) == 0 {
		return Event{}, false, b.closed
	}

	event := b.queue[0]
	b.queue[0] = Event{}
	b.queue = b.queue[1:]

	return event, true, false
}

func (b *Bus) route(event Event) {
	b.handlersMu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.Type]...)
	b.handlersMu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	p := b.poolFor(event.Type)
	for _, h := range handlers {
		p.jobs <- job{event: event, handler: h}
	}
}

// poolFor is only called from the dispatch goroutine.
func (b *Bus) poolFor(eventType types.EventType) *pool {
	if p, ok := b.pools[eventType]; ok {
		return p
	}

	p := &pool{jobs: make(chan job, b.poolQueue)}
	b.pools[eventType] = p

	for range b.workers {
		b.workerWg.Add(1)

		go b.work(p)
	}

	return p
}

func (b *Bus) work(p *pool) {
	defer b.workerWg.Done()

	for j := range p.jobs {
		b.run(j)
	}
}

func (b *Bus) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked",
				zap.String("event", string(j.event.Type)),
				zap.String("event_id", j.event.ID),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	if err := j.handler(b.ctx, j.event); err != nil {
		b.logger.Warn("Event handler failed",
			zap.String("event", string(j.event.Type)),
			zap.String("event_id", j.event.ID),
			zap.Error(err),
		)
	}
}
