package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server and the CLI read from the environment.
type Config struct {
	Env      string
	Port     string
	LogLevel string

	Database DatabaseConfig
	Auth     AuthConfig

	AllowRegistration bool
	CORSOrigins       []string

	GeminiAPIKey string
	GeminiModel  string
}

type DatabaseConfig struct {
	Driver        string // mysql | postgres | sqlite
	DSN           string
	Debug         bool
	Migrations    bool
	MigrationsDir string
}

type AuthConfig struct {
	Secret   string
	TokenTTL time.Duration
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Driver:        strings.ToLower(getEnv("DB_DRIVER", "mysql")),
			DSN:           os.Getenv("DB_DSN"),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),
		},
		Auth: AuthConfig{
			Secret: os.Getenv("JWT_SECRET"),
		},
		CORSOrigins:  splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash-001"),
	}

	var err error
	if cfg.Database.Debug, err = getBool("DB_DEBUG", false); err != nil {
		return nil, err
	}
	if cfg.Database.Migrations, err = getBool("MIGRATIONS", false); err != nil {
		return nil, err
	}
	if cfg.AllowRegistration, err = getBool("ALLOW_REGISTRATION", false); err != nil {
		return nil, err
	}
	if cfg.Auth.TokenTTL, err = getDuration("JWT_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("DB_DSN is required for driver %q", c.Database.Driver)
		}
	case "sqlite":
		if c.Database.DSN == "" {
			c.Database.DSN = "file:ledger.db"
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Database.Migrations && c.Database.Driver != "mysql" {
		return fmt.Errorf("MIGRATIONS is only supported with the mysql driver")
	}
	if c.Auth.Secret == "" {
		if c.Env != "development" {
			return fmt.Errorf("JWT_SECRET is required when APP_ENV=%s", c.Env)
		}
		c.Auth.Secret = "dev-only-secret-change-me"
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("%s: invalid boolean %q", key, raw)
}

// getDuration accepts Go durations ("12h") and day counts ("30d").
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	if days, found := strings.CutSuffix(raw, "d"); found {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("%s: invalid day count %q", key, raw)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
