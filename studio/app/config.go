package app

import (
	"fmt"
	"strings"

	coreconfig "github.com/m3rciful/studiobot/core/config"
	coredatabase "github.com/m3rciful/studiobot/core/database"
	"github.com/m3rciful/studiobot/studio/i18n"
)

// Record store backends.
const (
	BackendSheets   = "sheets"
	BackendPostgres = "postgres"
	BackendBolt     = "bolt"
	BackendMemory   = "memory"
)

// StoreConfig selects and configures the record backend.
type StoreConfig struct {
	Backend         string `yaml:"backend" envconfig:"STORE_BACKEND"`
	SpreadsheetID   string `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"GOOGLE_CREDENTIALS_FILE"`
	BoltPath        string `yaml:"bolt_path" envconfig:"STORE_BOLT_PATH"`
	TimeoutSeconds  int    `yaml:"timeout_seconds" envconfig:"STORE_TIMEOUT_SECONDS"`
}

// I18nConfig configures the message catalog.
type I18nConfig struct {
	DefaultLanguage string `yaml:"default_language" envconfig:"DEFAULT_LANGUAGE"`
	CatalogPath     string `yaml:"catalog_path" envconfig:"I18N_CATALOG_PATH"`
}

// BroadcastConfig paces mass delivery.
type BroadcastConfig struct {
	RatePerSecond float64 `yaml:"rate_per_second" envconfig:"BROADCAST_RATE_PER_SECOND"`
	ProgressEvery int     `yaml:"progress_every" envconfig:"BROADCAST_PROGRESS_EVERY"`
}

// StudioConfig holds studio-facing links.
type StudioConfig struct {
	ShopURL string `yaml:"shop_url" envconfig:"SHOP_URL"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Store     StoreConfig         `yaml:"store"`
	Database  coredatabase.Config `yaml:"database"`
	I18n      I18nConfig          `yaml:"i18n"`
	Broadcast BroadcastConfig     `yaml:"broadcast"`
	Studio    StudioConfig        `yaml:"studio"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// DefaultLanguage returns the parsed i18n.default_language.
func (c *Config) DefaultLanguage() i18n.Lang {
	l, _ := i18n.Parse(c.I18n.DefaultLanguage)
	return l
}

// LoadConfig reads path, overlays the environment and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = BackendSheets
	}
	switch c.Store.Backend {
	case BackendSheets:
		if strings.TrimSpace(c.Store.SpreadsheetID) == "" {
			return fmt.Errorf("store.spreadsheet_id is required for the sheets backend")
		}
	case BackendPostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("database.host and database.name are required for the postgres backend")
		}
		if c.Database.Port == "" {
			c.Database.Port = "5432"
		}
	case BackendBolt:
		if strings.TrimSpace(c.Store.BoltPath) == "" {
			c.Store.BoltPath = "data/studiobot.db"
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid store.backend %q; allowed: sheets, postgres, bolt, memory", c.Store.Backend)
	}
	if c.Store.TimeoutSeconds < 0 {
		return fmt.Errorf("store.timeout_seconds must be >= 0")
	}

	if c.I18n.DefaultLanguage == "" {
		c.I18n.DefaultLanguage = string(i18n.UK)
	}
	l, ok := i18n.Parse(c.I18n.DefaultLanguage)
	if !ok {
		return fmt.Errorf("unsupported i18n.default_language %q", c.I18n.DefaultLanguage)
	}
	c.I18n.DefaultLanguage = string(l)

	if c.Broadcast.RatePerSecond < 0 {
		return fmt.Errorf("broadcast.rate_per_second must be >= 0")
	}
	if c.Broadcast.RatePerSecond == 0 {
		c.Broadcast.RatePerSecond = 20
	}
	if c.Broadcast.ProgressEvery < 0 {
		return fmt.Errorf("broadcast.progress_every must be >= 0")
	}
	return nil
}
