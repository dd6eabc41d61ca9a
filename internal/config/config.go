package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/subosito/gotenv"
)

const (
	defaultDSN         = "host=localhost user=postgres password=postgres dbname=phonestore port=5432 sslmode=disable"
	defaultCORSOrigins = "http://localhost:5173"
)

type Config struct {
	AppEnv string `envconfig:"APP_ENV" default:"development"`

	HTTPPort    string `envconfig:"HTTP_PORT" default:"8080"`
	DBDriver    string `envconfig:"DB_DRIVER" default:"postgres"`
	DatabaseDSN string `envconfig:"DATABASE_DSN" default:"host=localhost user=postgres password=postgres dbname=phonestore port=5432 sslmode=disable"`

	JWTSecret string        `envconfig:"JWT_SECRET"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`

	CORSOrigins      string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
	ProductImagePath string `envconfig:"PRODUCT_IMAGE_PATH" default:"./product-images"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	ReturnWindowDays      int `envconfig:"RETURN_WINDOW_DAYS" default:"7"`
	DefaultWarrantyMonths int `envconfig:"DEFAULT_WARRANTY_MONTHS" default:"12"`
	LoginRateLimit        int `envconfig:"LOGIN_RATE_LIMIT" default:"10"`

	MetricsEnabled     bool   `envconfig:"METRICS_ENABLED" default:"true"`
	JobsEnabled        bool   `envconfig:"JOBS_ENABLED" default:"true"`
	BlacklistPurgeSpec string `envconfig:"BLACKLIST_PURGE_SPEC" default:"@hourly"`
	WarrantyExpireSpec string `envconfig:"WARRANTY_EXPIRE_SPEC" default:"@daily"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("config: JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("config: JWT_SECRET must be at least 32 characters")
	}
	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite" {
		return nil, fmt.Errorf("config: unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.JWTTTL <= 0 {
		return nil, errors.New("config: JWT_TTL must be positive")
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// Warnings lists settings that still carry development defaults.
func (c *Config) Warnings() []string {
	var out []string
	if c.DatabaseDSN == defaultDSN {
		out = append(out, "DATABASE_DSN uses the default value, set your own Postgres connection for production")
	}
	if c.CORSOrigins == defaultCORSOrigins {
		out = append(out, "CORS_ALLOWED_ORIGINS uses the default value, set your own domain for production")
	}
	return out
}
