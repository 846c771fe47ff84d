// Package app wires configuration, storage and the Telegram runtime into
// the studio bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/studiobot/core/bootstrap"
	"github.com/m3rciful/studiobot/core/cmd"
	"github.com/m3rciful/studiobot/core/logger"
	coretelegram "github.com/m3rciful/studiobot/core/telegram"
	"github.com/m3rciful/studiobot/core/telegram/middleware"
	"github.com/m3rciful/studiobot/core/telegram/state"
	"github.com/m3rciful/studiobot/studio/flow"
	"github.com/m3rciful/studiobot/studio/handlers"
	"github.com/m3rciful/studiobot/studio/i18n"
	"github.com/m3rciful/studiobot/studio/records"
	"github.com/m3rciful/studiobot/studio/users"
)

// App holds the long-lived services of a running bot.
type App struct {
	cfg    *Config
	store  *records.Store
	users  *users.Service
	states state.Manager
	cat    *i18n.Catalog
}

// runBootstrap is replaced in tests.
var runBootstrap = bootstrap.Run

// Bootstrap initializes logging, opens the record store, ensures every
// collection and warms the user cache.
func Bootstrap(ctx context.Context, carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}

	opts := bootstrap.Options{Config: cfg.CoreConfig()}
	if cfg.Store.Backend == BackendPostgres {
		db := cfg.Database
		opts.Database = &db
	}
	res, err := runBootstrap(ctx, opts)
	if err != nil {
		return nil, err
	}

	backend, err := openBackend(ctx, cfg, res)
	if err != nil {
		_ = res.Close()
		return nil, err
	}
	a, err := build(ctx, cfg, backend)
	if err != nil {
		_ = res.Close()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg *Config, backend records.Backend) (*App, error) {
	store := records.NewStore(backend, records.Options{
		Timeout: time.Duration(cfg.Store.TimeoutSeconds) * time.Second,
	})
	fail := func(err error) (*App, error) {
		_ = store.Close()
		return nil, err
	}

	cat, err := i18n.Load(cfg.I18n.CatalogPath, cfg.DefaultLanguage())
	if err != nil {
		return fail(fmt.Errorf("app: catalog: %w", err))
	}

	if err := bootstrap.RunSeeders(ctx, collectionSeeders(store)...); err != nil {
		return fail(fmt.Errorf("app: ensure collections: %w", err))
	}

	svc := users.New(store, cat.Default())
	if err := svc.Load(ctx); err != nil {
		return fail(fmt.Errorf("app: load users: %w", err))
	}

	logger.LogEvent(ctx, logger.Store, slog.LevelInfo, "store.ready",
		slog.String("status", "ok"),
		slog.String("backend", cfg.Store.Backend),
	)
	return &App{
		cfg:    cfg,
		store:  store,
		users:  svc,
		states: state.NewMemoryManager(),
		cat:    cat,
	}, nil
}

func collectionSeeders(store *records.Store) []bootstrap.Seeder {
	seeders := make([]bootstrap.Seeder, 0, len(records.All()))
	for _, c := range records.All() {
		seeders = append(seeders, bootstrap.SeederFunc(func(ctx context.Context) error {
			return store.EnsureCollection(ctx, c.Name, c.Header)
		}))
	}
	return seeders
}

func openBackend(ctx context.Context, cfg *Config, res *bootstrap.Result) (records.Backend, error) {
	switch cfg.Store.Backend {
	case BackendSheets:
		return records.NewSheets(ctx, cfg.Store.SpreadsheetID, cfg.Store.CredentialsFile)
	case BackendPostgres:
		if res == nil || res.DB == nil {
			return nil, fmt.Errorf("app: postgres backend without database connection: %w", records.ErrUnavailable)
		}
		return records.NewPostgres(res.DB), nil
	case BackendBolt:
		return records.OpenBolt(cfg.Store.BoltPath)
	case BackendMemory:
		return records.NewMemory(), nil
	}
	return nil, fmt.Errorf("app: unknown store backend %q", cfg.Store.Backend)
}

// Close releases the record store.
func (a *App) Close() error {
	return a.store.Close()
}

// TelegramRunOptions builds the runtime: middleware chain, and on build the
// flow engine, handlers and routes bound to the live bot.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := a.cfg.CoreConfig()
	mws := coretelegram.DefaultMiddlewares(core, nil,
		coretelegram.Middleware{Name: "flow", Use: middleware.FlowTagMiddleware(a.states)},
		handlers.Activity(a.users),
	)
	return coretelegram.RunOptions{
		Config:      core,
		Registry:    coretelegram.NewRegistry(),
		Middlewares: mws,
		OnBuild:     a.onBuild,
	}, nil
}

func (a *App) onBuild(_ context.Context, rt coretelegram.Runtime) ([]coretelegram.Route, error) {
	if rt.Bot == nil {
		return nil, errors.New("app: runtime without bot")
	}
	h := a.handlers(handlers.NewRenderer(rt.Bot))
	if err := h.Register(rt.Registry); err != nil {
		return nil, err
	}
	return h.Routes(rt.Registry), nil
}

func (a *App) handlers(renderer flow.Renderer) *handlers.Handlers {
	core := a.cfg.CoreConfig()
	engine := flow.New(flow.Deps{
		Records:   a.store,
		States:    a.states,
		Catalog:   a.cat,
		Renderer:  renderer,
		Languages: a.users,
		Admins:    core,
		Audience:  a.users,
	}, flow.Options{
		RatePerSecond: a.cfg.Broadcast.RatePerSecond,
		ProgressEvery: a.cfg.Broadcast.ProgressEvery,
	})
	return handlers.New(handlers.Deps{
		Flows:   engine,
		Records: a.store,
		Users:   a.users,
		Catalog: a.cat,
	}, handlers.Options{
		ShopURL: a.cfg.Studio.ShopURL,
		IsAdmin: core.IsAdmin,
	})
}
