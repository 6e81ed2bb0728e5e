// Package app wires the service together and owns its lifecycle: config
// load and hot reload, storage, the preference cache, the broadcast
// pipeline, session housekeeping, and graceful shutdown.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"talkgroups/internal/broadcast"
	"talkgroups/internal/channel"
	"talkgroups/internal/config"
	"talkgroups/internal/messages"
	"talkgroups/internal/prefs"
	"talkgroups/internal/router"
	"talkgroups/internal/session"
	"talkgroups/internal/storage"
	"talkgroups/internal/transport"
	"talkgroups/internal/transport/telegram"
	logx "talkgroups/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	store    storage.Store
	gateway  *prefs.Gateway
	prefsMgr *prefs.Manager
	registry *channel.Provider
	sessions *session.Tracker
	catalog  *messages.Catalog
	adapter  transport.Adapter
	bcast    *broadcast.Service
	router   *router.Router

	cron        *cron.Cron
	idleTimeout time.Duration
	updates     chan transport.Update

	runMu     sync.Mutex
	runCancel context.CancelFunc
	runWG     sync.WaitGroup
	cfgSub    chan *config.Config
}

func New(cfgPath string) (*App, error) {
	cfgMgr := config.NewManager(cfgPath)
	cfg, err := cfgMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	cfgMgr.SetLogger(log.With(logx.String("comp", "config")))

	reg, err := cfg.BuildRegistry()
	if err != nil {
		return nil, err
	}
	registry := channel.NewProvider(reg)

	var store storage.Store
	if cfg.Storage != nil {
		busy, err := config.DurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return nil, err
		}
		store, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
	}
	if store == nil {
		log.Warn("storage disabled; mute sets will not survive restarts")
	}

	opTimeout, err := config.DurationField("persistence.op_timeout", cfg.Persistence.OpTimeout)
	if err != nil {
		return nil, err
	}
	gateway := prefs.NewGateway(store, prefs.GatewayConfig{
		Workers:   cfg.Persistence.Workers,
		QueueSize: cfg.Persistence.QueueSize,
		OpTimeout: opTimeout,
	}, log.With(logx.String("comp", "gateway")))
	prefsMgr := prefs.NewManager(gateway, log.With(logx.String("comp", "prefs")))

	pollTimeout, err := config.DurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}

	catalog := messages.NewCatalog(cfg.Messages)
	sessions := session.NewTracker()

	bcast := broadcast.New(broadcast.Config{
		Workers:    cfg.Broadcast.Workers,
		QueueSize:  cfg.Broadcast.QueueSize,
		RatePerSec: cfg.Broadcast.RatePerSec,
		RetryMax:   cfg.Broadcast.RetryMax,
	}, adapter, prefsMgr, catalog, log.With(logx.String("comp", "broadcast")))

	rt := router.New(registry, prefsMgr, bcast, sessions, catalog, adapter,
		router.Grants(cfg.Grants), log.With(logx.String("comp", "router")))

	idleTimeout, err := config.DurationOrDefault("session.idle_timeout", cfg.Session.IdleTimeout, 30*time.Minute)
	if err != nil {
		return nil, err
	}

	return &App{
		cfgMgr:      cfgMgr,
		logSvc:      logSvc,
		log:         log,
		store:       store,
		gateway:     gateway,
		prefsMgr:    prefsMgr,
		registry:    registry,
		sessions:    sessions,
		catalog:     catalog,
		adapter:     adapter,
		bcast:       bcast,
		router:      rt,
		cron:        cron.New(),
		idleTimeout: idleTimeout,
		updates:     make(chan transport.Update, 256),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.runCancel != nil {
		return nil
	}
	rctx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel

	cfg := a.cfgMgr.Get()

	a.bcast.Start(rctx)
	if err := a.adapter.Start(rctx, a.updates); err != nil {
		cancel()
		a.runCancel = nil
		return fmt.Errorf("start transport: %w", err)
	}

	// Update dispatch.
	a.runWG.Add(1)
	go func() {
		defer a.runWG.Done()
		for {
			select {
			case <-rctx.Done():
				return
			case up := <-a.updates:
				a.router.HandleUpdate(rctx, up)
			}
		}
	}()

	// Config hot reload.
	a.cfgSub = a.cfgMgr.Subscribe(1)
	a.runWG.Add(2)
	go func() {
		defer a.runWG.Done()
		if err := a.cfgMgr.Watch(rctx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	go func() {
		defer a.runWG.Done()
		for {
			select {
			case <-rctx.Done():
				return
			case next, ok := <-a.cfgSub:
				if !ok {
					return
				}
				a.applyConfig(next)
			}
		}
	}()

	if err := a.scheduleHousekeeping(rctx, cfg); err != nil {
		cancel()
		a.runCancel = nil
		return err
	}
	a.cron.Start()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("talkgroups started",
		logx.Int("channels", a.registry.Current().Len()),
		logx.Bool("persistent", a.store != nil))
	return nil
}

// applyConfig applies the hot-reloadable parts of a new config snapshot:
// log sinks, channel definitions, grants, and message templates. Transport,
// storage, and worker pools keep their boot-time settings.
func (a *App) applyConfig(cfg *config.Config) {
	a.logSvc.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	reg, err := cfg.BuildRegistry()
	if err != nil {
		// Parse already validated; this is belt and braces.
		a.log.Warn("reloaded channel set rejected", logx.Err(err))
		return
	}
	a.registry.Swap(reg)
	a.router.SetGrants(router.Grants(cfg.Grants))
	a.catalog.Update(cfg.Messages)
	a.log.Info("config applied", logx.Int("channels", reg.Len()))
}

func (a *App) scheduleHousekeeping(ctx context.Context, cfg *config.Config) error {
	autosave, err := config.DurationOrDefault("session.autosave_every", cfg.Session.AutosaveEvery, 5*time.Minute)
	if err != nil {
		return err
	}
	sweep, err := config.DurationOrDefault("session.sweep_every", cfg.Session.SweepEvery, time.Minute)
	if err != nil {
		return err
	}

	if _, err := a.cron.AddFunc("@every "+autosave.String(), func() {
		sctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := a.prefsMgr.SaveAll(sctx); err != nil {
			a.log.Warn("periodic preference save incomplete", logx.Err(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule autosave: %w", err)
	}

	if _, err := a.cron.AddFunc("@every "+sweep.String(), func() {
		a.sweepIdle(ctx)
	}); err != nil {
		return fmt.Errorf("schedule idle sweep: %w", err)
	}
	return nil
}

// sweepIdle closes sessions with no recent activity, flushing and evicting
// each user's preferences.
func (a *App) sweepIdle(ctx context.Context) {
	cutoff := time.Now().Add(-a.idleTimeout)
	for _, userID := range a.sessions.IdleBefore(cutoff) {
		if !a.sessions.RemoveIfIdleBefore(userID, cutoff) {
			continue
		}
		uctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := a.prefsMgr.Unload(uctx, userID)
		cancel()
		if err != nil {
			a.log.Warn("session close flush failed", logx.String("user", userID), logx.Err(err))
			continue
		}
		a.log.Info("session closed (idle)", logx.String("user", userID))
	}
}

// Stop shuts the service down in dependency order: stop intake, flush every
// cached preference Record, then release the store.
func (a *App) Stop(ctx context.Context) error {
	a.runMu.Lock()
	cancel := a.runCancel
	a.runCancel = nil
	a.runMu.Unlock()
	if cancel == nil {
		return nil
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	cronCtx := a.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
	}

	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn("transport stop", logx.Err(err))
	}
	cancel()
	a.bcast.Stop()
	a.runWG.Wait()
	if a.cfgSub != nil {
		a.cfgMgr.Unsubscribe(a.cfgSub)
		a.cfgSub = nil
	}

	if err := a.prefsMgr.SaveAll(ctx); err != nil {
		a.log.Warn("final preference save incomplete", logx.Err(err))
	}
	a.prefsMgr.ClearCache()
	a.gateway.Close()

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("store close", logx.Err(err))
		}
	}
	a.log.Info("talkgroups stopped")
	_ = a.logSvc.Close()
	return nil
}
