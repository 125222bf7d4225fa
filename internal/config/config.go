// Package config loads service configuration from an optional YAML file,
// a .env file and the environment, in increasing order of precedence.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"

	"github.com/liamcoop/ratebook/internal/db"
	"github.com/liamcoop/ratebook/internal/logger"
)

type Config struct {
	Env   string        `yaml:"env" env:"APP_ENV" env-default:"prod"`
	HTTP  HTTPServer    `yaml:"http_server"`
	Store Store         `yaml:"store"`
	Cache Cache         `yaml:"cache"`
	Log   logger.Config `yaml:"log"`
	CORS  CORS          `yaml:"cors"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"30s"`
	SlowRequest     time.Duration `yaml:"slow_request" env:"HTTP_SLOW_REQUEST" env-default:"1s"`
}

// Store selects the rule set backend. Workflows need Postgres; with the
// sqlite or memory drivers the workflow routes are not mounted unless
// DatabaseURL is also set.
type Store struct {
	Driver      string        `yaml:"driver" env:"STORE_DRIVER" env-default:"postgres"`
	DatabaseURL string        `yaml:"database_url" env:"DATABASE_URL"`
	SQLitePath  string        `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"ratebook.db"`
	Pool        db.PoolConfig `yaml:"pool"`
}

type Cache struct {
	Kind       string        `yaml:"kind" env:"CACHE_KIND" env-default:"memory"`
	TTL        time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"0s"`
	MaxEntries int64         `yaml:"max_entries" env:"CACHE_MAX_ENTRIES" env-default:"10000"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
}

// Load reads the configuration. path may be empty, in which case only the
// environment (and a .env file in the working directory) is used.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, eris.Wrap(err, "read config")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load for main packages, reading the file named by CONFIG_PATH
func MustLoad() *Config {
	cfg, err := Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal("cannot read config", "error", err)
	}
	return cfg
}

func (c *Config) validate() error {
	c.Store.Driver = strings.ToLower(c.Store.Driver)
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: DATABASE_URL is required for the postgres store")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return eris.New("config: SQLITE_PATH is required for the sqlite store")
		}
	case "memory":
	default:
		return eris.Errorf("config: unknown store driver %q (use postgres, sqlite or memory)", c.Store.Driver)
	}

	c.Cache.Kind = strings.ToLower(c.Cache.Kind)
	switch c.Cache.Kind {
	case "memory", "ristretto", "none":
	default:
		return eris.Errorf("config: unknown cache kind %q (use memory, ristretto or none)", c.Cache.Kind)
	}
	return nil
}
