package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	// DefaultCheckCron runs the watchers every five seconds; the first field is seconds.
	DefaultCheckCron = "*/5 * * * * *"
)

// AppConfig holds all process configuration. Moderation behaviour lives in
// the policy file, see Policy.
type AppConfig struct {
	StoreDriver   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string

	TelegramToken   string
	AdminTelegramID int64
	ModChatID       int64 // where removal alerts go, 0 disables them

	LogLevel    string
	Environment string
	SentryDSN   string

	HTTPAddr      string
	WebhookSecret string // required in X-Webhook-Secret when set
	PolicyFile    string
	CheckCron     string

	Subreddit   string
	BotUsername string
	BotUserID   string

	APIRatePerSecond int
	RetryAttempts    int
	RetryUnit        time.Duration
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.Subreddit = os.Getenv("SUBREDDIT")
	if cfg.Subreddit == "" {
		return nil, fmt.Errorf("SUBREDDIT is not set")
	}
	cfg.BotUsername = os.Getenv("BOT_USERNAME")
	if cfg.BotUsername == "" {
		return nil, fmt.Errorf("BOT_USERNAME is not set")
	}
	cfg.BotUserID = os.Getenv("BOT_USER_ID")

	cfg.StoreDriver = strings.ToLower(os.Getenv("STORE_DRIVER"))
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = StoreRedis
	}
	switch cfg.StoreDriver {
	case StoreRedis:
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			cfg.RedisAddr = "localhost:6379"
		}
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
		if cfg.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
			return nil, err
		}
	case StorePostgres:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is not set")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken != "" {
		adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID")
		if adminIDStr == "" {
			return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
		}
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
		if chat := os.Getenv("MOD_CHAT_ID"); chat != "" {
			cfg.ModChatID, err = strconv.ParseInt(chat, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid MOD_CHAT_ID: %w", err)
			}
		}
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	cfg.SentryDSN = os.Getenv("SENTRY_DSN")

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	cfg.WebhookSecret = os.Getenv("WEBHOOK_SECRET")
	cfg.PolicyFile = os.Getenv("POLICY_FILE")
	cfg.CheckCron = os.Getenv("CHECK_CRON")
	if cfg.CheckCron == "" {
		cfg.CheckCron = DefaultCheckCron
	}

	if cfg.APIRatePerSecond, err = intEnv("API_RATE_PER_SECOND", 10); err != nil {
		return nil, err
	}
	if cfg.RetryAttempts, err = intEnv("RETRY_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	cfg.RetryUnit = time.Second
	if unit := os.Getenv("RETRY_UNIT"); unit != "" {
		cfg.RetryUnit, err = time.ParseDuration(unit)
		if err != nil {
			return nil, fmt.Errorf("invalid RETRY_UNIT: %w", err)
		}
	}

	return cfg, nil
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
