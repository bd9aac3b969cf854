package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("SUBREDDIT", "pics")
	t.Setenv("BOT_USERNAME", "explainbot")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("CHECK_CRON", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("RETRY_UNIT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, cfg.StoreDriver)
	assert.Equal(t, DefaultCheckCron, cfg.CheckCron)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, time.Second, cfg.RetryUnit)
	assert.Zero(t, cfg.AdminTelegramID)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/bot")
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("ADMIN_TELEGRAM_ID", "42")
	t.Setenv("MOD_CHAT_ID", "-100123")
	t.Setenv("RETRY_ATTEMPTS", "5")
	t.Setenv("RETRY_UNIT", "250ms")
	t.Setenv("WEBHOOK_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, int64(42), cfg.AdminTelegramID)
	assert.Equal(t, int64(-100123), cfg.ModChatID)
	assert.Equal(t, 5, cfg.RetryAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryUnit)
	assert.Equal(t, "s3cret", cfg.WebhookSecret)
}

func TestLoad_Errors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"missing subreddit", map[string]string{"SUBREDDIT": ""}},
		{"unknown store", map[string]string{"STORE_DRIVER": "mongo"}},
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres", "DATABASE_URL": ""}},
		{"telegram without admin", map[string]string{"TELEGRAM_TOKEN": "token", "ADMIN_TELEGRAM_ID": ""}},
		{"bad retry unit", map[string]string{"STORE_DRIVER": "memory", "RETRY_UNIT": "soon"}},
		{"bad redis db", map[string]string{"STORE_DRIVER": "redis", "REDIS_DB": "zero"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
