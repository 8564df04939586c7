// Package app assembles the bot from its configuration and runs it.
package app

import (
	"context"
	"time"

	"github.com/rxtech-lab/argo-shortbot/internal/api"
	"github.com/rxtech-lab/argo-shortbot/internal/config"
	"github.com/rxtech-lab/argo-shortbot/internal/engine"
	"github.com/rxtech-lab/argo-shortbot/internal/eventbus"
	"github.com/rxtech-lab/argo-shortbot/internal/exchange"
	"github.com/rxtech-lab/argo-shortbot/internal/feed"
	"github.com/rxtech-lab/argo-shortbot/internal/indicator"
	"github.com/rxtech-lab/argo-shortbot/internal/logger"
	"github.com/rxtech-lab/argo-shortbot/internal/notify"
	"github.com/rxtech-lab/argo-shortbot/internal/scheduler"
	"github.com/rxtech-lab/argo-shortbot/internal/state"
	"github.com/rxtech-lab/argo-shortbot/internal/stats"
	"github.com/rxtech-lab/argo-shortbot/internal/storage"
	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"github.com/rxtech-lab/argo-shortbot/internal/utils"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Scheduled job names.
const (
	JobBreakerScan  = "breaker-scan"
	JobStateFlush   = "state-flush"
	JobSessionStats = "session-stats"
	JobSymbolRules  = "symbol-rules"
)

const (
	// Handlers of one event type may run out of order. Consumers key their writes by symbol
	// or alert number and tolerate that.
	busWorkers      = 2
	shutdownTimeout = 10 * time.Second
)

// App owns every component of a running bot.
type App struct {
	cfg    *config.Config
	logger *logger.Logger

	bus        *eventbus.Bus
	settings   *config.Settings
	store      *state.Store
	ledger     *storage.TradeLedger
	cooldowns  *storage.CooldownStore
	stateFile  *storage.StateFile
	subscriber *storage.Subscriber
	tracker    *stats.Tracker
	notifier   *notify.Telegram
	executor   *exchange.Executor
	engine     *engine.Engine
	feed       *feed.Feed
	sampler    *indicator.Sampler
	scheduler  *scheduler.Scheduler
	api        *api.Server
}

// New builds the bot. Storage is opened here; nothing runs until Run is called.
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: log} //nolint:exhaustruct // filled below

	a.bus = eventbus.New(log.Named("eventbus"), eventbus.WithWorkers(busWorkers))
	a.settings = config.NewSettings(cfg.Trading, a.bus)
	a.store = state.New(a.settings, a.bus, log.Named("state"), state.WithBalance(cfg.Portfolio.DefaultBalance))

	if err := a.openStorage(); err != nil {
		a.abort()

		return nil, err
	}

	a.subscriber = storage.NewSubscriber(a.ledger, a.cooldowns, a.stateFile, a.store, log.Named("storage"))
	a.tracker = stats.NewTracker(cfg.Storage.Path(cfg.Storage.StatsFile), log.Named("stats"), time.Now)

	if err := a.buildNotifier(); err != nil {
		a.abort()

		return nil, err
	}

	if err := a.buildTrading(); err != nil {
		a.abort()

		return nil, err
	}

	if err := a.buildScheduler(); err != nil {
		a.abort()

		return nil, err
	}

	a.api = api.NewServer(api.Dependencies{
		State:     a.store,
		Trader:    a.engine,
		Settings:  a.settings,
		History:   a.ledger,
		Cooldowns: a.cooldowns,
		Session:   a.tracker,
		Listings:  a.feed,
		Resetters: []api.Resetter{a.ledger, a.cooldowns},
	}, log)

	return a, nil
}

func (a *App) openStorage() error {
	var err error

	storageCfg := a.cfg.Storage

	a.ledger, err = storage.OpenTradeLedger(storageCfg.Path(storageCfg.LedgerFile), a.logger.Named("ledger"))
	if err != nil {
		return err
	}

	a.cooldowns, err = storage.OpenCooldownStore(storageCfg.Path(storageCfg.CooldownFile))
	if err != nil {
		return err
	}

	a.stateFile = storage.NewStateFile(storageCfg.Path(storageCfg.StateFile))

	return nil
}

func (a *App) buildNotifier() error {
	if a.cfg.Telegram.BotToken == "" && a.cfg.Telegram.ChatID == "" {
		a.logger.Info("Telegram is not configured, notifications are off")

		return nil
	}

	notifier, err := notify.NewTelegram(a.cfg.Telegram, a.store, a.logger.Named("telegram"))
	if err != nil {
		return err
	}

	a.notifier = notifier

	return nil
}

func (a *App) buildTrading() error {
	binance := a.cfg.Binance
	client := exchange.NewFuturesClient(binance.APIKey, binance.SecretKey, binance.Testnet)
	market := exchange.NewMarketData(client, utils.RetryPolicy{
		Retries:     binance.Retries,
		BaseDelay:   time.Second,
		CallTimeout: binance.CallTimeout,
	})

	opts := []engine.Option{}

	switch {
	case a.cfg.LiveTradingAvailable():
		executor, err := exchange.NewBinanceExecutor(binance, a.logger.Named("exchange"))
		if err != nil {
			return err
		}

		a.executor = executor
		opts = append(opts, engine.WithExecutor(executor))
	case binance.LiveEnabled:
		a.logger.Warn("Live trading requested without Binance credentials, running paper only")
	}

	a.engine = engine.New(a.store, a.settings, a.ledger, a.ledger, a.ledger, a.cfg.Intervals, a.logger.Named("engine"), opts...)
	a.feed = feed.New(market, a.store, a.logger.Named("feed"))

	sampler, err := indicator.NewSampler(market, a.store, a.cfg.Indicator, a.cfg.Intervals, a.logger.Named("indicator"))
	if err != nil {
		return err
	}

	a.sampler = sampler

	return nil
}

type scheduledJob struct {
	name string
	spec string
	job  scheduler.Job
}

func (a *App) buildScheduler() error {
	a.scheduler = scheduler.New(a.logger)

	jobs := []scheduledJob{
		{name: JobBreakerScan, spec: a.cfg.Intervals.BreakerScan, job: func(ctx context.Context) error {
			_, err := a.engine.ScanLosses(ctx)

			return err
		}},
		{name: JobStateFlush, spec: a.cfg.Intervals.StateFlush, job: func(context.Context) error {
			return a.subscriber.Flush()
		}},
		{name: JobSessionStats, spec: "@every 1m", job: func(context.Context) error {
			return a.refreshSessionStats()
		}},
	}

	if a.executor != nil {
		jobs = append(jobs, scheduledJob{name: JobSymbolRules, spec: "@every 1h", job: a.executor.RefreshRules})
	}

	for _, j := range jobs {
		if err := a.scheduler.Register(j.name, j.spec, j.job); err != nil {
			return err
		}
	}

	return nil
}

func (a *App) refreshSessionStats() error {
	unrealized := 0.0
	for _, trade := range a.store.Trades() {
		unrealized += trade.PnLUSDT
	}

	a.tracker.Refresh(unrealized)

	return a.tracker.WriteStatsYAML()
}

// Run restores persisted state, attaches every subscriber and runs the workers until ctx is
// cancelled or one of them fails. Storage is closed before Run returns.
func (a *App) Run(ctx context.Context) error {
	defer a.closeStorage()

	_, err := storage.Restore(ctx, a.ledger, a.cooldowns, a.stateFile, a.store, time.Now(), a.logger.Named("restore"))
	if err != nil {
		// No flush here: a failed restore must not overwrite the state file with defaults.
		a.abort()

		return err
	}

	a.subscriber.Register(a.bus)
	a.tracker.Register(a.bus)

	if a.notifier != nil {
		a.notifier.Register(a.bus)
	}

	a.bus.Subscribe(types.EventIndicatorUpdated, a.engine.OnIndicatorUpdated)

	if a.executor != nil {
		if err := a.executor.RefreshRules(ctx); err != nil {
			a.logger.Warn("Failed to load symbol rules, they will be fetched on first order", zap.Error(err))
		}

		if _, err := a.engine.SyncOpenPositions(ctx); err != nil {
			a.logger.Warn("Position sync failed", zap.Error(err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.feed.Run(gctx) })
	g.Go(func() error { return a.sampler.Run(gctx) })
	g.Go(func() error { return a.engine.Run(gctx) })
	g.Go(func() error { return a.scheduler.Run(gctx) })
	g.Go(func() error { return a.api.Run(gctx, a.cfg.API.Listen) })

	runErr := g.Wait()

	a.shutdown()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	return nil
}

func (a *App) shutdown() {
	a.logger.Info("Shutting down")

	a.engine.Stop()
	a.store.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.bus.Close(ctx); err != nil {
		a.logger.Warn("Event bus did not drain", zap.Error(err))
	}

	if err := a.subscriber.Flush(); err != nil {
		a.logger.Error("Final state flush failed", zap.Error(err))
	}

	if err := a.tracker.WriteStatsYAML(); err != nil {
		a.logger.Error("Final stats write failed", zap.Error(err))
	}
}

func (a *App) abort() {
	a.store.Stop()
	_ = a.bus.Close(context.Background())
	a.closeStorage()
}

func (a *App) closeStorage() {
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.logger.Warn("Failed to close trade ledger", zap.Error(err))
		}

		a.ledger = nil
	}

	if a.cooldowns != nil {
		if err := a.cooldowns.Close(); err != nil {
			a.logger.Warn("Failed to close cooldown store", zap.Error(err))
		}

		a.cooldowns = nil
	}
}
