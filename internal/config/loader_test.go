package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		cfg, err := LoadFrom(map[string]string{"COWORKING_JWT_SECRET": "super-secret"})
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.HTTPPort)
		assert.Equal(t, "super-secret", cfg.JWTSecret)
		assert.Equal(t, 720*time.Hour, cfg.JWTTTL)
		assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
		assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
		assert.True(t, cfg.MetricsEnabled)

		assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
		assert.Contains(t, cfg.Storage.DSN(), "_txlock=immediate")

		assert.True(t, cfg.Cache.Enabled)
		assert.Equal(t, 512, cfg.Cache.Size)
		assert.Equal(t, 10*time.Minute, cfg.Cache.RoomListTTL)
		assert.Equal(t, 5*time.Minute, cfg.Cache.RoomTTL)
		assert.Equal(t, 30*time.Second, cfg.Cache.BookingTTL)
		assert.Equal(t, 10*time.Minute, cfg.Cache.MaxTTL())

		assert.Empty(t, cfg.NATS.URL)
		assert.Equal(t, "coworking", cfg.NATS.SubjectPrefix)
		assert.Equal(t, slog.LevelInfo, cfg.Log.Level)
		assert.Equal(t, "json", cfg.Log.Format)
	})

	t.Run("reads overrides", func(t *testing.T) {
		cfg, err := LoadFrom(map[string]string{
			"COWORKING_JWT_SECRET":        "s",
			"COWORKING_HTTP_PORT":         "9090",
			"COWORKING_STORAGE_DRIVER":    "postgres",
			"COWORKING_POSTGRES_HOST":     "db",
			"COWORKING_POSTGRES_PASSWORD": "pw",
			"COWORKING_CACHE_ENABLED":     "false",
			"COWORKING_CACHE_BOOKING_TTL": "1m",
			"COWORKING_NATS_URL":          "nats://localhost:4222",
			"COWORKING_LOG_LEVEL":         "debug",
			"COWORKING_LOG_FORMAT":        "text",
			"COWORKING_CORS_ORIGINS":      "https://a.example,https://b.example",
		})
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.HTTPPort)
		assert.Equal(t, "postgresql://postgres:pw@db:5432/coworking?sslmode=disable", cfg.Storage.DSN())
		assert.False(t, cfg.Cache.Enabled)
		assert.Equal(t, time.Minute, cfg.Cache.BookingTTL)
		assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
		assert.Equal(t, slog.LevelDebug, cfg.Log.Level)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	})

	t.Run("postgres URL wins over parts", func(t *testing.T) {
		cfg, err := LoadFrom(map[string]string{
			"COWORKING_JWT_SECRET":     "s",
			"COWORKING_STORAGE_DRIVER": "postgres",
			"COWORKING_POSTGRES_URL":   "postgres://u@h/db",
			"COWORKING_POSTGRES_HOST":  "ignored",
		})
		require.NoError(t, err)
		assert.Equal(t, "postgres://u@h/db", cfg.Storage.DSN())
	})

	t.Run("errors when the secret is missing", func(t *testing.T) {
		_, err := LoadFrom(map[string]string{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "COWORKING_JWT_SECRET")
	})

	t.Run("reports invalid values together", func(t *testing.T) {
		_, err := LoadFrom(map[string]string{
			"COWORKING_JWT_SECRET":     "s",
			"COWORKING_HTTP_PORT":      "70000",
			"COWORKING_STORAGE_DRIVER": "mongo",
			"COWORKING_LOG_FORMAT":     "xml",
		})
		require.Error(t, err)
		assert.Equal(t, "invalid environment values: COWORKING_HTTP_PORT, COWORKING_LOG_FORMAT, COWORKING_STORAGE_DRIVER", err.Error())
	})

	t.Run("rejects unparsable durations", func(t *testing.T) {
		_, err := LoadFrom(map[string]string{"COWORKING_JWT_SECRET": "s", "COWORKING_STORE_TIMEOUT": "soon"})
		assert.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	t.Setenv("COWORKING_JWT_SECRET", "from-env")
	t.Setenv("COWORKING_STORAGE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
}
