package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/studiobot/studio/i18n"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_SheetsDefaults(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
  admin_ids: [42]
store:
  spreadsheet_id: "sheet-1"
  credentials_file: "creds.json"
studio:
  shop_url: "https://shop.example"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, BackendSheets, cfg.Store.Backend)
	assert.Equal(t, "sheet-1", cfg.Store.SpreadsheetID)
	assert.Equal(t, i18n.UK, cfg.DefaultLanguage())
	assert.Equal(t, 20.0, cfg.Broadcast.RatePerSecond)
	assert.Equal(t, "https://shop.example", cfg.Studio.ShopURL)
	assert.True(t, cfg.CoreConfig().IsAdmin(42))
	assert.Equal(t, "longpoll", cfg.Telegram.RunMode)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
store:
  backend: sheets
  spreadsheet_id: "from-yaml"
`)
	t.Setenv("STORE_BACKEND", "bolt")
	t.Setenv("DEFAULT_LANGUAGE", "ua")
	t.Setenv("BROADCAST_PROGRESS_EVERY", "25")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, BackendBolt, cfg.Store.Backend)
	assert.Equal(t, "data/studiobot.db", cfg.Store.BoltPath)
	assert.Equal(t, i18n.UK, cfg.DefaultLanguage())
	assert.Equal(t, 25, cfg.Broadcast.ProgressEvery)
}

func TestLoadConfig_PostgresDefaultsPort(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
store:
  backend: Postgres
database:
  host: db
  name: studio
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, "5432", cfg.Database.Port)
}

func TestNormalize_Errors(t *testing.T) {
	cases := map[string]Config{
		"sheets without id":    {},
		"postgres without db":  {Store: StoreConfig{Backend: BackendPostgres}},
		"unknown backend":      {Store: StoreConfig{Backend: "excel"}},
		"negative timeout":     {Store: StoreConfig{Backend: BackendMemory, TimeoutSeconds: -1}},
		"unsupported language": {Store: StoreConfig{Backend: BackendMemory}, I18n: I18nConfig{DefaultLanguage: "fr"}},
		"negative rate":        {Store: StoreConfig{Backend: BackendMemory}, Broadcast: BroadcastConfig{RatePerSecond: -1}},
		"negative progress":    {Store: StoreConfig{Backend: BackendMemory}, Broadcast: BroadcastConfig{ProgressEvery: -5}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, cfg.normalize())
		})
	}
}
