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

type Config struct {
	TelegramToken    string
	AdminIDs         map[int64]bool
	WebhookURL       string
	WebhookSecret    string
	ChallongeAPIKey  string
	ChallongeBaseURL string
	ChallongePrivate bool
	DatabaseDriver   string
	DatabaseURL      string
	MigrationsPath   string
	SessionStore     string
	SessionTTL       time.Duration
	RedisAddr        string
	RedisPassword    string
	HTTPPort         int
	StatusPollCron   string
	LogLevel         slog.Level
}

// Load reads the environment, optionally from a .env file. A missing Challonge
// key is not an error here: bracket commands report it when they are used.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return fromEnv(os.Getenv)
}

func fromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		TelegramToken:    get("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:       get("TELEGRAM_WEBHOOK_URL", ""),
		WebhookSecret:    get("TELEGRAM_WEBHOOK_SECRET", ""),
		ChallongeAPIKey:  get("CHALLONGE_API_KEY", ""),
		ChallongeBaseURL: get("CHALLONGE_BASE_URL", ""),
		DatabaseDriver:   get("DATABASE_DRIVER", "sqlite3"),
		DatabaseURL:      get("DATABASE_URL", "file:bot.db?_foreign_keys=on"),
		SessionStore:     get("SESSION_STORE", "sql"),
		RedisAddr:        get("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    get("REDIS_PASSWORD", ""),
		StatusPollCron:   get("STATUS_POLL_CRON", "@every 1m"),
	}
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}

	if cfg.WebhookURL != "" && cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("TELEGRAM_WEBHOOK_SECRET is required when TELEGRAM_WEBHOOK_URL is set")
	}

	switch cfg.DatabaseDriver {
	case "sqlite3", "postgres":
	default:
		return nil, fmt.Errorf("DATABASE_DRIVER must be sqlite3 or postgres, got %q", cfg.DatabaseDriver)
	}
	cfg.MigrationsPath = get("MIGRATIONS_PATH", "file://migrations/"+migrationsDir(cfg.DatabaseDriver))

	switch cfg.SessionStore {
	case "sql", "memory", "redis":
	default:
		return nil, fmt.Errorf("SESSION_STORE must be sql, memory or redis, got %q", cfg.SessionStore)
	}

	var err error
	if cfg.AdminIDs, err = parseIDs(get("TELEGRAM_ADMIN_IDS", "")); err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_ADMIN_IDS: %w", err)
	}

	if cfg.ChallongePrivate, err = strconv.ParseBool(get("CHALLONGE_PRIVATE", "true")); err != nil {
		return nil, fmt.Errorf("invalid CHALLONGE_PRIVATE: %w", err)
	}

	// 0 keeps swap selections until they are used or cancelled.
	if cfg.SessionTTL, err = time.ParseDuration(get("SESSION_TTL", "0s")); err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}

	portStr := get("HTTP_PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", port)
	}
	cfg.HTTPPort = port

	if err := cfg.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

// IsAdmin reports whether a Telegram user may run organizer commands. With no
// admins configured every user is one.
func (c *Config) IsAdmin(userID int64) bool {
	return len(c.AdminIDs) == 0 || c.AdminIDs[userID]
}

func migrationsDir(driver string) string {
	if driver == "postgres" {
		return "postgres"
	}
	return "sqlite"
}

func parseIDs(s string) (map[int64]bool, error) {
	ids := map[int64]bool{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, nil
}
