package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Telegram struct {
		BotToken string `env:"BOT_TOKEN"`
		// Zero disables the init-data expiration check.
		InitDataTTL time.Duration `env:"INIT_DATA_TTL" envDefault:"24h"`
	}

	// Remote Nebula backend that owns users, inventories and the catalog.
	Backend struct {
		BaseURL string        `env:"BACKEND_BASE_URL" envDefault:"https://nebula-server-ypun.onrender.com"`
		Timeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"10s"`
	}

	Sync struct {
		Interval           time.Duration `env:"SYNC_INTERVAL" envDefault:"15s"`
		MinAccrualInterval time.Duration `env:"SYNC_MIN_ACCRUAL_INTERVAL" envDefault:"0s"` // 0 means Interval
		AccrualUnit        int64         `env:"SYNC_ACCRUAL_UNIT" envDefault:"1"`
		RequestTimeout     time.Duration `env:"SYNC_REQUEST_TIMEOUT" envDefault:"10s"`
		MaxBackoff         time.Duration `env:"SYNC_MAX_BACKOFF" envDefault:"2m"`
	}

	Session struct {
		IdleTimeout  time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"2m"`
		ReapInterval time.Duration `env:"SESSION_REAP_INTERVAL" envDefault:"30s"`
		MirrorTTL    time.Duration `env:"SESSION_MIRROR_TTL" envDefault:"10m"`
	}

	Catalog struct {
		CacheTTL     time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"30s"`
		SimilarLimit int           `env:"CATALOG_SIMILAR_LIMIT" envDefault:"3"`
	}
}

// RedisAddr returns host:port of the Redis server.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func Load() (*Config, error) {
	// .env is optional; in production variables come from the environment
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is Load that panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) validate() error {
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive")
	}
	if c.Sync.MinAccrualInterval < 0 {
		return fmt.Errorf("SYNC_MIN_ACCRUAL_INTERVAL cannot be negative")
	}
	if c.Sync.AccrualUnit <= 0 {
		return fmt.Errorf("SYNC_ACCRUAL_UNIT must be positive")
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("BACKEND_BASE_URL cannot be empty")
	}
	return nil
}
