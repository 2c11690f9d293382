package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StoreDriverJSON   = "json"
	StoreDriverSQLite = "sqlite"

	SourceRSS  = "rss"
	SourceHTML = "html"

	minCheckInterval = time.Second
)

type Config struct {
	Token         string        `env:"TOKEN,required,notEmpty"`
	ChatID        int64         `env:"CHAT_ID,required"`
	AllowedUsers  []int64       `env:"ALLOWED_USERS"`
	StoreDriver   string        `env:"STORE_DRIVER"            envDefault:"json"`
	StatePath     string        `env:"STATE_PATH"              envDefault:"twitter_users.json"`
	DBPath        string        `env:"DB_PATH"                 envDefault:"db.sqlite"`
	CheckInterval time.Duration `env:"CHECK_INTERVAL"          envDefault:"60s"`
	Source        string        `env:"SOURCE"                  envDefault:"rss"`
	NitterURL     string        `env:"NITTER_URL"              envDefault:"https://nitter.net"`
	PermalinkBase string        `env:"PERMALINK_BASE"          envDefault:"https://x.com"`
	FetchTimeout  time.Duration `env:"FETCH_TIMEOUT"           envDefault:"20s"`
	LogLevel      string        `env:"LOG_LEVEL"               envDefault:"info"`
}

// StorageConfig is the subset needed by the offline state commands.
type StorageConfig struct {
	StoreDriver string `env:"STORE_DRIVER" envDefault:"json"`
	StatePath   string `env:"STATE_PATH"   envDefault:"twitter_users.json"`
	DBPath      string `env:"DB_PATH"      envDefault:"db.sqlite"`
}

func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.Source = strings.ToLower(strings.TrimSpace(cfg.Source))

	if err = cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func LoadStorage() (StorageConfig, error) {
	cfg, err := env.ParseAs[StorageConfig]()
	if err != nil {
		return StorageConfig{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if err = validateStoreDriver(cfg.StoreDriver); err != nil {
		return StorageConfig{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.ChatID == 0 {
		errs = append(errs, errors.New("CHAT_ID must be non-zero"))
	}

	if err := validateStoreDriver(c.StoreDriver); err != nil {
		errs = append(errs, err)
	}

	switch c.Source {
	case SourceRSS, SourceHTML:
	default:
		errs = append(errs, fmt.Errorf("SOURCE must be %q or %q (SOURCE = %s)", SourceRSS, SourceHTML, c.Source))
	}

	if c.CheckInterval < minCheckInterval {
		errs = append(errs, fmt.Errorf("CHECK_INTERVAL must be at least %s (CHECK_INTERVAL = %s)",
			minCheckInterval, c.CheckInterval))
	}

	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("FETCH_TIMEOUT must be positive (FETCH_TIMEOUT = %s)", c.FetchTimeout))
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (c Config) Storage() StorageConfig {
	return StorageConfig{
		StoreDriver: c.StoreDriver,
		StatePath:   c.StatePath,
		DBPath:      c.DBPath,
	}
}

func ParseLogLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL is invalid (LOG_LEVEL = %s): %w", raw, err)
	}
	return level, nil
}

func validateStoreDriver(driver string) error {
	switch driver {
	case StoreDriverJSON, StoreDriverSQLite:
		return nil
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q (STORE_DRIVER = %s)",
			StoreDriverJSON, StoreDriverSQLite, driver)
	}
}
