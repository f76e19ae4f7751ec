// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/text/language"
)

// Config holds the server settings.
type Config struct {
	Addr   string `env:"ADDR"    envDefault:":8080"`
	DBPath string `env:"DB_PATH" envDefault:"./data/orders.db"`

	// RedisURL selects the Redis document store when set. The catalog
	// always lives in SQLite.
	RedisURL string `env:"REDIS_URL"`

	DebounceWindow time.Duration `env:"DEBOUNCE_WINDOW" envDefault:"500ms"`

	JWTSecret string        `env:"JWT_SECRET,required,notEmpty"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// CollationLocale orders product names in summaries and catalog lists.
	CollationLocale string `env:"COLLATION_LOCALE" envDefault:"es"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings the server cannot run with.
func (c Config) Validate() error {
	if c.DebounceWindow <= 0 {
		return errors.New("DEBOUNCE_WINDOW must be positive")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if _, err := c.Locale(); err != nil {
		return err
	}
	return nil
}

// Locale returns the parsed collation locale.
func (c Config) Locale() (language.Tag, error) {
	tag, err := language.Parse(c.CollationLocale)
	if err != nil {
		return language.Und, fmt.Errorf("invalid COLLATION_LOCALE %q: %w", c.CollationLocale, err)
	}
	return tag, nil
}
