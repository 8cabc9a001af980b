// Package config loads process configuration from the environment, with an
// optional .env file. Every variable carries the QUOTE_ prefix.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const Prefix = "QUOTE"

type Config struct {
	Port            int           `envconfig:"PORT" default:"8080"`
	DBPath          string        `envconfig:"DB_PATH" default:"quotes.db"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	// SeedDemo loads the demo scenarios when the database has no templates.
	SeedDemo bool `envconfig:"SEED_DEMO" default:"false"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"` // console | json

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173,http://localhost:8080"`

	Availability struct {
		MaxRetries int           `envconfig:"MAX_RETRIES" default:"2"`
		Backoff    time.Duration `envconfig:"BACKOFF" default:"500ms"`
		CacheTTL   time.Duration `envconfig:"CACHE_TTL" default:"30s"`
	} `envconfig:"AVAILABILITY"`

	// Redis is optional; an empty Addr disables the availability cache.
	Redis struct {
		Addr     string `envconfig:"ADDR"`
		Password string `envconfig:"PASSWORD"`
		DB       int    `envconfig:"DB" default:"0"`
	} `envconfig:"REDIS"`
}

// Load reads .env files (missing files are fine) and then the environment.
// Variables already set in the environment win over .env values.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("processing environment: %w", err)
	}
	if cfg.Availability.MaxRetries < 0 {
		return Config{}, fmt.Errorf("%s_AVAILABILITY_MAX_RETRIES must not be negative", Prefix)
	}
	return cfg, nil
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
