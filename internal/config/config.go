// Package config loads the server configuration from the environment and the
// optional gateway defaults file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the server configuration, decoded from environment variables.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR,default=:8080"`

	// DatabaseDSN selects Postgres persistence. Empty runs the in-memory
	// store, which is fine for development only.
	DatabaseDSN string `env:"DATABASE_URL"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	StockCacheTTL time.Duration `env:"STOCK_CACHE_TTL,default=5m"`

	AuthSecret string        `env:"AUTH_SECRET"`
	TokenTTL   time.Duration `env:"TOKEN_TTL,default=12h"`

	// PlatformToken enables the tenant provisioning endpoint when set.
	PlatformToken string `env:"PLATFORM_TOKEN"`

	AuditPath    string `env:"AUDIT_PATH"`
	GatewaysPath string `env:"GATEWAYS_PATH,default=config/gateways.yaml"`

	CORSOrigins    []string `env:"CORS_ORIGINS,default=*"`
	RateLimitRPS   int      `env:"RATE_LIMIT_RPS,default=20"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST,default=40"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`
}

// Load reads the optional env file and decodes the configuration from the
// environment.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	if cfg.AuthSecret == "" {
		return Config{}, fmt.Errorf("AUTH_SECRET is required")
	}
	return cfg, nil
}
