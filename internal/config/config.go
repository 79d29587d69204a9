// Package config loads and validates server configuration from the
// environment and an optional .env file using Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultSecretKey is the development signing secret. It is rejected in
// production.
const DefaultSecretKey = "change_me_please"

// DefaultBootstrapPassword is the development password for operator
// accounts. It is rejected in production while bootstrap is enabled.
const DefaultBootstrapPassword = "admin123"

// Config holds all configuration for the EOEX server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Bootstrap BootstrapConfig
}

type ServerConfig struct {
	Port        int
	Env         string
	CORSOrigins []string
}

type DatabaseConfig struct {
	URL             string
	PoolSize        int
	MinConns        int
	ConnMaxLifetime time.Duration
	// AcquireTimeout bounds how long an operation waits for a pooled
	// connection before failing with a resource-exhaustion error.
	AcquireTimeout time.Duration
}

type RedisConfig struct {
	URL string
}

type AuthConfig struct {
	SecretKey string
	TokenTTL  time.Duration
	Issuer    string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type BootstrapConfig struct {
	Enabled         bool
	DefaultPassword string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("EOEX_PORT", 8080)
	v.SetDefault("EOEX_ENV", "development")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:8000")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_POOL_SIZE", 10)
	v.SetDefault("DATABASE_MIN_CONNS", 2)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "5m")
	v.SetDefault("DATABASE_ACQUIRE_TIMEOUT", "5s")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SECRET_KEY", DefaultSecretKey)
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 60)
	v.SetDefault("JWT_ISSUER", "eoex")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 60)
	v.SetDefault("BOOTSTRAP_ENABLED", true)
	v.SetDefault("BOOTSTRAP_PASSWORD", DefaultBootstrapPassword)
}

// Load reads .env (if present), then the environment, and returns a
// validated Config. Environment variables override .env values.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine

	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Server: ServerConfig{
			Port:        v.GetInt("EOEX_PORT"),
			Env:         v.GetString("EOEX_ENV"),
			CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("DATABASE_URL"),
			PoolSize:        v.GetInt("DATABASE_POOL_SIZE"),
			MinConns:        v.GetInt("DATABASE_MIN_CONNS"),
			ConnMaxLifetime: durationOr(v.GetString("DATABASE_CONN_MAX_LIFETIME"), 5*time.Minute),
			AcquireTimeout:  durationOr(v.GetString("DATABASE_ACQUIRE_TIMEOUT"), 5*time.Second),
		},
		Redis: RedisConfig{
			URL: v.GetString("REDIS_URL"),
		},
		Auth: AuthConfig{
			SecretKey: v.GetString("SECRET_KEY"),
			TokenTTL:  time.Duration(v.GetInt("ACCESS_TOKEN_EXPIRE_MINUTES")) * time.Minute,
			Issuer:    v.GetString("JWT_ISSUER"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		},
		Bootstrap: BootstrapConfig{
			Enabled:         v.GetBool("BOOTSTRAP_ENABLED"),
			DefaultPassword: v.GetString("BOOTSTRAP_PASSWORD"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Database.PoolSize < 1 {
		return fmt.Errorf("DATABASE_POOL_SIZE must be at least 1, got %d", c.Database.PoolSize)
	}
	if c.Database.MinConns < 0 || c.Database.MinConns > c.Database.PoolSize {
		return fmt.Errorf("DATABASE_MIN_CONNS must be between 0 and DATABASE_POOL_SIZE, got %d", c.Database.MinConns)
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Auth.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY is required")
	}
	if c.Server.Env == "production" && c.Auth.SecretKey == DefaultSecretKey {
		return fmt.Errorf("SECRET_KEY must be changed when EOEX_ENV=production")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}

	if c.Bootstrap.Enabled && c.Bootstrap.DefaultPassword == "" {
		return fmt.Errorf("BOOTSTRAP_PASSWORD is required when BOOTSTRAP_ENABLED is true")
	}
	if c.IsProduction() && c.Bootstrap.Enabled && c.Bootstrap.DefaultPassword == DefaultBootstrapPassword {
		return fmt.Errorf("BOOTSTRAP_PASSWORD must be changed when EOEX_ENV=production")
	}
	return nil
}

// IsProduction reports whether the server runs with EOEX_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
