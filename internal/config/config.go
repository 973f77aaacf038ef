package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/ehr/tracker/internal/domain/metadata"
	"github.com/ehr/tracker/internal/platform/db"
)

type Config struct {
	Port                    string `mapstructure:"PORT"`
	Env                     string `mapstructure:"ENV"`
	LogLevel                string `mapstructure:"LOG_LEVEL"`
	DatabaseURL             string `mapstructure:"DATABASE_URL"`
	DBMaxConns              int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns              int32  `mapstructure:"DB_MIN_CONNS"`
	DBSchema                string `mapstructure:"DB_SCHEMA"`
	MigrationsDir           string `mapstructure:"MIGRATIONS_DIR"`
	PreheatFetchConcurrency int    `mapstructure:"PREHEAT_FETCH_CONCURRENCY"`
	ImportBodyLimit         string `mapstructure:"IMPORT_BODY_LIMIT"`
	DefaultIDScheme         string `mapstructure:"DEFAULT_ID_SCHEME"`
}

var keys = []string{
	"PORT",
	"ENV",
	"LOG_LEVEL",
	"DATABASE_URL",
	"DB_MAX_CONNS",
	"DB_MIN_CONNS",
	"DB_SCHEMA",
	"MIGRATIONS_DIR",
	"PREHEAT_FETCH_CONCURRENCY",
	"IMPORT_BODY_LIMIT",
	"DEFAULT_ID_SCHEME",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DB_SCHEMA", "tracker")
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("PREHEAT_FETCH_CONCURRENCY", 4)
	v.SetDefault("IMPORT_BODY_LIMIT", "10M")
	v.SetDefault("DEFAULT_ID_SCHEME", "UID")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// A missing .env file is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Level returns the parsed LOG_LEVEL, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// IDScheme returns the identifier used for metadata when an import does not
// name one.
func (c *Config) IDScheme() (metadata.Identifier, error) {
	return metadata.ParseIdentifier(c.DefaultIDScheme)
}

// Pool returns the connection pool settings.
func (c *Config) Pool() db.PoolConfig {
	return db.PoolConfig{
		DatabaseURL: c.DatabaseURL,
		MaxConns:    c.DBMaxConns,
		MinConns:    c.DBMinConns,
		Schema:      c.DBSchema,
	}
}

// Validate checks that the configuration is usable before anything connects.
func (c *Config) Validate() error {
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
			return fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}
	if !db.ValidSchema(c.DBSchema) {
		return fmt.Errorf("DB_SCHEMA %q is not a valid schema name", c.DBSchema)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.PreheatFetchConcurrency < 0 {
		return fmt.Errorf("PREHEAT_FETCH_CONCURRENCY must not be negative, got %d", c.PreheatFetchConcurrency)
	}
	if _, err := c.IDScheme(); err != nil {
		return fmt.Errorf("DEFAULT_ID_SCHEME: %w", err)
	}
	return nil
}
