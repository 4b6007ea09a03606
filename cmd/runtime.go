package cmd

import (
	"log/slog"
	"os"

	"github.com/jmreid/daybook/internal/app"
	"github.com/jmreid/daybook/internal/config"
	"github.com/jmreid/daybook/internal/events"
	"github.com/jmreid/daybook/internal/logging"
	"github.com/jmreid/daybook/internal/scope"
	"github.com/jmreid/daybook/internal/store"
	daysync "github.com/jmreid/daybook/internal/sync"
	"github.com/jmreid/daybook/internal/sync/httpadapter"
	"github.com/jmreid/daybook/internal/txn"
)

// runtime bundles the wired-up core for one command invocation. Components
// are constructed here and passed by reference; none of them are globals.
type runtime struct {
	cfg   *config.Config
	log   *slog.Logger
	store *store.Store
	scope *scope.Scope
	bus   *events.Bus
	coord *txn.Coordinator
	app   *app.App
	orch  *daysync.Orchestrator
}

// openRuntime loads config and opens the store, wiring scope, coordinator,
// bus, and sync orchestrator together.
func openRuntime() (*runtime, error) {
	cfg, err := config.Load(baseDir)
	if err != nil {
		return nil, err
	}
	log := logging.Setup(os.Stderr, cfg.LogLevel)

	st, err := store.Open(baseDir)
	if err != nil {
		return nil, err
	}

	sc := scope.New()
	if cfg.UserID != "" {
		sc.SetUserID(cfg.UserID)
	}

	bus := events.NewBus(log)
	coord := txn.New(st, bus, log)
	application := app.New(st, sc, coord, log)

	adapter := httpadapter.New(cfg.Sync.ServerURL, cfg.Sync.APIKey, cfg.Sync.DeviceID)
	orch := daysync.New(st, coord, sc, bus, adapter, daysync.Options{
		Debounce: cfg.Debounce(),
		Policies: cfg.PolicyTable(),
		Logger:   log,
	})
	orch.Start()
	if !cfg.Sync.Enabled || cfg.Sync.ServerURL == "" {
		orch.Disable()
	}

	return &runtime{
		cfg:   cfg,
		log:   log,
		store: st,
		scope: sc,
		bus:   bus,
		coord: coord,
		app:   application,
		orch:  orch,
	}, nil
}

// Close tears the runtime down in dependency order.
func (rt *runtime) Close() {
	rt.orch.Close()
	rt.store.Close()
}
