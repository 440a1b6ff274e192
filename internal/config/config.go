package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the errdesk server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Intake   IntakeConfig
}

type ServerConfig struct {
	Port             int
	Env              string
	LogLevel         slog.Level
	RateLimitPerMin  int
	MigrationsDir    string
	CategorySeedPath string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// IntakeConfig tunes the error intake workflow.
type IntakeConfig struct {
	DefaultURL        string
	DefaultUserAgent  string
	StrictTransitions bool
}

// Load reads configuration from environment variables and returns a validated Config.
// In development a .env file in the working directory is loaded first; variables
// already set in the environment win.
func Load() (*Config, error) {
	if envString("ERRDESK_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:             envInt("ERRDESK_PORT", 8080),
			Env:              envString("ERRDESK_ENV", "development"),
			LogLevel:         envLogLevel("ERRDESK_LOG_LEVEL", slog.LevelInfo),
			RateLimitPerMin:  envInt("ERRDESK_RATE_LIMIT_PER_MIN", 120),
			MigrationsDir:    envString("ERRDESK_MIGRATIONS_DIR", "migrations"),
			CategorySeedPath: os.Getenv("ERRDESK_CATEGORY_SEED"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Intake: IntakeConfig{
			DefaultURL:        os.Getenv("ERRDESK_DEFAULT_URL"),
			DefaultUserAgent:  envString("ERRDESK_DEFAULT_USER_AGENT", "errdesk"),
			StrictTransitions: envBool("ERRDESK_STRICT_TRANSITIONS", false),
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
	if !strings.HasPrefix(c.Database.URL, "postgres://") && !strings.HasPrefix(c.Database.URL, "postgresql://") {
		return fmt.Errorf("DATABASE_URL must start with postgres:// or postgresql://, got %q", c.Database.URL)
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("ERRDESK_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envLogLevel(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		return defaultVal
	}
	return lvl
}
