// Package feed streams the all-market futures ticker into the state store.
package feed

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/cenkalti/backoff/v4"
	"github.com/rxtech-lab/argo-shortbot/internal/logger"
	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"go.uber.org/zap"
)

const (
	defaultStaleAfter      = 30 * time.Second
	defaultListingsRefresh = time.Hour
	defaultReconnectDelay  = 5 * time.Second
	defaultMaxReconnect    = time.Minute
)

// ServeFunc opens the ticker stream. It matches futures.WsAllMarketTickerServe.
type ServeFunc func(handler futures.WsAllMarketTickerHandler, errHandler futures.ErrHandler) (doneC, stopC chan struct{}, err error)

// ListingSource returns the onboard date of every tradable contract.
type ListingSource interface {
	ListingTimes(ctx context.Context) (map[string]time.Time, error)
}

// MarketStore is the part of the state store the feed writes to.
type MarketStore interface {
	UpdateMarketData(batch []types.TickerUpdate)
	UpdateListingTimes(times map[string]time.Time)
	Controls() types.ControlFlags
}

// Feed keeps one websocket connection open while the feed control is on.
type Feed struct {
	serve    ServeFunc
	listings ListingSource
	store    MarketStore
	logger   *logger.Logger

	staleAfter      time.Duration
	listingsRefresh time.Duration
	reconnectDelay  time.Duration
	maxReconnect    time.Duration

	mu          sync.Mutex
	valid       map[string]struct{}
	lastMessage time.Time
}

// New creates a feed over the Binance futures all-market ticker stream.
func New(listings ListingSource, store MarketStore, log *logger.Logger) *Feed {
	return NewWithServe(futures.WsAllMarketTickerServe, listings, store, log)
}

// NewWithServe creates a feed over any stream opener.
func NewWithServe(serve ServeFunc, listings ListingSource, store MarketStore, log *logger.Logger) *Feed {
	return &Feed{
		serve:           serve,
		listings:        listings,
		store:           store,
		logger:          log,
		staleAfter:      defaultStaleAfter,
		listingsRefresh: defaultListingsRefresh,
		reconnectDelay:  defaultReconnectDelay,
		maxReconnect:    defaultMaxReconnect,
		mu:              sync.Mutex{},
		valid:           nil,
		lastMessage:     time.Time{},
	}
}

// Run keeps the stream connected until ctx is done.
func (f *Feed) Run(ctx context.Context) error {
	f.logger.Info("Market feed started")

	f.RefreshListings(ctx)

	go f.refreshListingsLoop(ctx)

	reconnect := backoff.NewExponentialBackOff()
	reconnect.InitialInterval = f.reconnectDelay
	reconnect.MaxInterval = f.maxReconnect
	reconnect.MaxElapsedTime = 0

	for {
		if !f.store.Controls().FeedEnabled {
			if !sleepCtx(ctx, f.reconnectDelay) {
				return nil
			}

			continue
		}

		received := f.connect(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if received {
			reconnect.Reset()
		}

		wait := reconnect.NextBackOff()
		f.logger.Warn("Market feed disconnected, reconnecting", zap.Duration("wait", wait))

		if !sleepCtx(ctx, wait) {
			return nil
		}
	}
}

// connect serves one connection and returns once it ends. It reports whether any message arrived.
func (f *Feed) connect(ctx context.Context) bool {
	connectedAt := time.Now()
	f.setLastMessage(connectedAt)

	doneC, stopC, err := f.serve(f.HandleEvent, func(err error) {
		f.logger.Warn("Market feed error", zap.Error(err))
	})
	if err != nil {
		f.logger.Error("Failed to open market feed", zap.Error(err))

		return false
	}

	f.logger.Info("Market feed connected")

	ticker := time.NewTicker(f.staleAfter / 3)
	defer ticker.Stop()

	stop := func() {
		select {
		case <-doneC:
		default:
			close(stopC)
			<-doneC
		}
	}

	for {
		select {
		case <-ctx.Done():
			stop()

			return f.lastMessageTime().After(connectedAt)
		case <-doneC:
			return f.lastMessageTime().After(connectedAt)
		case <-ticker.C:
			if !f.store.Controls().FeedEnabled {
				f.logger.Info("Market feed paused by user")
				stop()

				return true
			}

			if time.Since(f.lastMessageTime()) > f.staleAfter {
				f.logger.Warn("Market feed stale, forcing reconnect", zap.Duration("stale_after", f.staleAfter))
				stop()

				return false
			}
		}
	}
}

// HandleEvent converts one ticker batch and writes it to the store.
func (f *Feed) HandleEvent(event futures.WsAllMarketTickerEvent) {
	f.setLastMessage(time.Now())

	if !f.store.Controls().FeedEnabled {
		return
	}

	f.mu.Lock()
	valid := f.valid
	f.mu.Unlock()

	batch := make([]types.TickerUpdate, 0, len(event))

	for _, t := range event {
		if t == nil {
			continue
		}

		if valid != nil {
			if _, ok := valid[t.Symbol]; !ok {
				continue
			}
		}

		price, err := strconv.ParseFloat(t.ClosePrice, 64)
		if err != nil {
			continue
		}

		change, _ := strconv.ParseFloat(t.PriceChangePercent, 64)
		high, _ := strconv.ParseFloat(t.HighPrice, 64)

		batch = append(batch, types.TickerUpdate{
			Symbol:    t.Symbol,
			Price:     price,
			Change24h: change,
			High24h:   high,
		})
	}

	if len(batch) > 0 {
		f.store.UpdateMarketData(batch)
	}
}

// RefreshListings reloads the tradable symbols and their listing times.
// A failure keeps the previous set.
func (f *Feed) RefreshListings(ctx context.Context) {
	times, err := f.listings.ListingTimes(ctx)
	if err != nil {
		f.logger.Error("Could not fetch listing times", zap.Error(err))

		return
	}

	valid := make(map[string]struct{}, len(times))
	known := make(map[string]time.Time, len(times))

	for symbol, t := range times {
		valid[symbol] = struct{}{}

		if !t.IsZero() {
			known[symbol] = t
		}
	}

	f.mu.Lock()
	f.valid = valid
	f.mu.Unlock()

	f.store.UpdateListingTimes(known)

	f.logger.Info("Listing times refreshed", zap.Int("symbols", len(valid)))
}

func (f *Feed) refreshListingsLoop(ctx context.Context) {
	ticker := time.NewTicker(f.listingsRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.RefreshListings(ctx)
		}
	}
}

func (f *Feed) setLastMessage(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastMessage = t
}

func (f *Feed) lastMessageTime() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.lastMessage
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
