package app

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/studiobot/core/bootstrap"
	coreconfig "github.com/m3rciful/studiobot/core/config"
	coretelegram "github.com/m3rciful/studiobot/core/telegram"
	"github.com/m3rciful/studiobot/studio/i18n"
	"github.com/m3rciful/studiobot/studio/records"

	tele "gopkg.in/telebot.v4"
)

func memoryConfig() *Config {
	cfg := &Config{
		Config: coreconfig.Config{
			Telegram: coreconfig.TelegramConfig{Token: "t", AdminIDs: []int64{42}},
		},
		Store: StoreConfig{Backend: BackendMemory},
	}
	if err := cfg.normalize(); err != nil {
		panic(err)
	}
	return cfg
}

func TestBuildEnsuresEveryCollection(t *testing.T) {
	ctx := context.Background()
	backend := records.NewMemory()

	a, err := build(ctx, memoryConfig(), backend)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	for _, c := range records.All() {
		rows, err := backend.Rows(ctx, c.Name)
		require.NoError(t, err, c.Name)
		require.NotEmpty(t, rows, c.Name)
		assert.Equal(t, c.Header, rows[0], c.Name)
	}
	assert.Equal(t, i18n.UK, a.cat.Default())
}

func TestBuildRestoresUserLanguages(t *testing.T) {
	ctx := context.Background()
	backend := records.NewMemory()
	require.NoError(t, backend.EnsureSheet(ctx, records.Users.Name, records.Users.Header))
	require.NoError(t, backend.AppendRow(ctx, records.Users.Name, []string{"7", "de", ""}))

	a, err := build(ctx, memoryConfig(), backend)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	lang, ok := a.users.Language(7)
	assert.True(t, ok)
	assert.Equal(t, i18n.DE, lang)
}

func TestBuildFailsOnMissingCatalogOverride(t *testing.T) {
	cfg := memoryConfig()
	cfg.I18n.CatalogPath = "/nonexistent/catalog.yaml"

	_, err := build(context.Background(), cfg, records.NewMemory())
	assert.Error(t, err)
}

func TestBootstrapReleasesInfrastructureWhenBuildFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	prev := runBootstrap
	runBootstrap = func(context.Context, bootstrap.Options) (*bootstrap.Result, error) {
		return &bootstrap.Result{DB: sqlx.NewDb(db, "postgres")}, nil
	}
	t.Cleanup(func() { runBootstrap = prev })

	cfg := memoryConfig()
	cfg.I18n.CatalogPath = "/nonexistent/catalog.yaml"
	a, err := Bootstrap(context.Background(), cfg)
	assert.Error(t, err)
	assert.Nil(t, a)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	b, err := openBackend(ctx, memoryConfig(), nil)
	require.NoError(t, err)
	assert.IsType(t, &records.Memory{}, b)

	cfg := memoryConfig()
	cfg.Store.Backend = BackendPostgres
	_, err = openBackend(ctx, cfg, nil)
	assert.ErrorIs(t, err, records.ErrUnavailable)

	cfg.Store.Backend = "excel"
	_, err = openBackend(ctx, cfg, nil)
	assert.Error(t, err)
}

func TestTelegramRunOptionsWiresStudioRoutes(t *testing.T) {
	ctx := context.Background()
	a, err := build(ctx, memoryConfig(), records.NewMemory())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	require.NotNil(t, opts.OnBuild)
	assert.True(t, opts.Config.IsAdmin(42))

	names := make([]string, 0, len(opts.Middlewares))
	for _, mw := range opts.Middlewares {
		names = append(names, mw.Name)
	}
	assert.Contains(t, names, "flow")
	assert.Contains(t, names, "activity")

	bot, err := tele.NewBot(tele.Settings{Token: "t", Offline: true})
	require.NoError(t, err)
	routes, err := opts.OnBuild(ctx, coretelegram.Runtime{Bot: bot, Registry: opts.Registry})
	require.NoError(t, err)
	assert.NotEmpty(t, routes)

	for _, name := range []string{"start", "cancel", "admin"} {
		_, _, ok := opts.Registry.LookupCommand(name)
		assert.True(t, ok, name)
	}
}

func TestOnBuildRequiresBot(t *testing.T) {
	a, err := build(context.Background(), memoryConfig(), records.NewMemory())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	_, err = a.onBuild(context.Background(), coretelegram.Runtime{Registry: coretelegram.NewRegistry()})
	assert.Error(t, err)
}
