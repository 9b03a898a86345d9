// Package app wires herald together: config, logging, storage, the
// event feed, the transport adapter and the reminder engine, plus the
// hot-reload and shutdown choreography.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"herald/internal/config"
	"herald/internal/content"
	"herald/internal/event"
	"herald/internal/observability/pprof"
	"herald/internal/reminder"
	"herald/internal/reminder/store"
	"herald/internal/runtime/supervisor"
	"herald/internal/subscriber"
	"herald/internal/transport/telegram"
	logx "herald/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	sup     *supervisor.Supervisor
	st      store.Store
	state   *reminder.State
	feed    *event.Feed
	reg     *subscriber.FileRegistry
	adapter *telegram.Adapter
	sched   *reminder.Scheduler
	pprof   *pprof.Service
	maint   *cron.Cron

	cfgCh chan *config.Config
}

// New parses and validates the config and builds the logger. Everything
// that can fail fast fails here, before any goroutine starts.
func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	mgr.SetLogger(log.With(logx.String("svc", "config")))
	mgr.SetValidator(func(ctx context.Context, cfg *config.Config) error {
		return config.Validate(cfg)
	})

	return &App{
		cfgMgr: mgr,
		logSvc: logSvc,
		log:    log,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgMgr.Get()
	log := a.log

	durs, err := cfg.Durations()
	if err != nil {
		return fmt.Errorf("resolve durations: %w", err)
	}

	a.sup = supervisor.New(ctx, supervisor.WithLogger(log.With(logx.String("svc", "supervisor"))))
	runCtx := a.sup.Context()

	// Persistence.
	var storageCfg store.Config
	if cfg.Storage != nil {
		storageCfg = store.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: durs.StorageBusyTimeout,
		}
	}
	st, err := store.Open(storageCfg, log.With(logx.String("svc", "store")))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.st = st
	if st == nil {
		log.Warn("persistence disabled; delivery history will not survive restarts")
	}

	a.state = reminder.NewState(st, log.With(logx.String("svc", "state")))
	if err := a.state.Load(runCtx); err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	a.sup.Go("state/flusher", a.state.RunFlusher)

	// Event feed.
	a.feed, err = event.NewFeed(event.FeedConfig{
		URL:        cfg.Events.URL,
		Path:       cfg.Events.Path,
		Refresh:    durs.EventsRefresh,
		Horizon:    durs.EventsHorizon,
		Categories: cfg.Events.Categories,
		CachePath:  cfg.Events.CachePath,
	}, log.With(logx.String("svc", "events")))
	if err != nil {
		return fmt.Errorf("event feed: %w", err)
	}
	a.sup.GoRestart("events/refresh", a.feed.Run)

	// Subscriber registry.
	a.reg = subscriber.NewFileRegistry(cfg.Subscribers.Path, durs.SubscribersTTL, log.With(logx.String("svc", "subscribers")))

	// Transport.
	a.adapter, err = telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		CallTimeout: durs.TelegramCallTimeout,
	}, log.With(logx.String("svc", "telegram")))
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	// Engine.
	schedCfg, err := schedulerConfig(cfg, durs)
	if err != nil {
		return err
	}
	a.sched = reminder.NewScheduler(
		schedCfg,
		a.state,
		a.feed,
		a.reg,
		a.adapter,
		content.NewRenderer(),
		a.sup,
		log.With(logx.String("svc", "reminder")),
	)

	a.sched.ReconcileOnStartup(runCtx)
	a.maint = a.sched.StartMaintenance(runCtx)
	a.sup.GoRestart("reminder/scan", a.sched.Run)

	// pprof.
	a.pprof = pprof.New(pprofConfig(cfg.Pprof, durs), log.With(logx.String("svc", "pprof")))
	a.pprof.Start(runCtx)

	// Hot reload.
	a.cfgCh = a.cfgMgr.Subscribe(1)
	a.sup.GoRestart("config/watch", a.cfgMgr.Watch)
	a.sup.Go0("config/apply", a.applyLoop)

	a.notifyReady()
	log.Info("herald started")
	return nil
}

// applyLoop applies hot-reloadable sections of a republished config.
// Structural sections (storage, telegram token) need a restart and are
// only reported.
func (a *App) applyLoop(ctx context.Context) {
	prev := a.cfgMgr.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-a.cfgCh:
			if !ok || cfg == nil {
				return
			}
			changed, attrs := config.SummarizeChange(prev, cfg)
			if len(changed) == 0 {
				continue
			}
			a.log.Info("config reloaded",
				append([]logx.Field{logx.Any("sections", changed)}, attrs...)...)

			for _, section := range changed {
				switch section {
				case "logging":
					a.logSvc.Apply(logx.Config{
						Level:   cfg.Logging.Level,
						Console: cfg.Logging.Console,
						File: logx.FileConfig{
							Enabled: cfg.Logging.File.Enabled,
							Path:    cfg.Logging.File.Path,
						},
					})
				case "pprof":
					// The validator already vetted the snapshot; a broken
					// duration cannot reach this point.
					durs, _ := cfg.Durations()
					a.pprof.Reconfigure(ctx, pprofConfig(cfg.Pprof, durs))
				case "telegram", "storage", "events", "subscribers", "reminders":
					a.log.Warn("config section needs a restart to apply",
						logx.String("section", section))
				}
			}
			prev = cfg
		}
	}
}

func schedulerConfig(cfg *config.Config, durs config.Durations) (reminder.Config, error) {
	r := cfg.Reminders
	var windows []reminder.Window
	for _, name := range r.Windows {
		w, err := reminder.ParseWindowName(name)
		if err != nil {
			return reminder.Config{}, fmt.Errorf("reminders.windows: %w", err)
		}
		windows = append(windows, w)
	}

	return reminder.Config{
		PollInterval:    durs.PollInterval,
		Horizon:         durs.ScanHorizon,
		CatchUp:         durs.CatchUp,
		Grace:           durs.Grace,
		Retention:       durs.Retention,
		ExpiryDelay:     durs.ExpiryDelay,
		ChannelID:       cfg.Telegram.ChannelID,
		Windows:         windows,
		TestMode:        r.TestMode,
		SendRate:        rate.Limit(r.RatePerSec),
		SendBurst:       r.Burst,
		SummaryInterval: durs.SummaryInterval,
	}, nil
}

func pprofConfig(p config.PprofConfig, durs config.Durations) pprof.Config {
	return pprof.Config{
		Enabled:       p.Enabled,
		Addr:          strings.TrimSpace(p.Addr),
		Prefix:        p.Prefix,
		Token:         p.Token,
		AllowInsecure: p.AllowInsecure,
		ReadTimeout:   durs.PprofReadTimeout,
		WriteTimeout:  durs.PprofWriteTimeout,
		IdleTimeout:   durs.PprofIdleTimeout,
	}
}

func (a *App) Stop(ctx context.Context) error {
	a.notifyStopping()
	if a.maint != nil {
		stopCtx := a.maint.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
	}
	if a.sup != nil {
		_ = a.sup.Stop(ctx)
	}
	if a.pprof != nil {
		a.pprof.Stop(ctx)
	}
	if a.adapter != nil {
		_ = a.adapter.Stop(ctx)
	}
	if a.st != nil {
		_ = a.st.Close()
	}
	a.log.Info("herald stopped")
	if a.logSvc != nil {
		_ = a.logSvc.Close()
	}
	return nil
}
