package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv clears keys for the duration of the test. An empty but present
// variable would bypass envconfig defaults.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

var configKeys = []string{
	"PORT", "STORE_DRIVER", "EVENTS_DRIVER", "EVENTS_STREAM", "LOG_LEVEL", "SHUTDOWN_TIMEOUT",
	"DATABASE_URL", "DATABASE_MAX_OPEN_CONNS", "DATABASE_CONN_MAX_LIFETIME", "DATABASE_MIGRATE",
	"REDIS_ADDR", "REDIS_CACHE_TTL", "KAFKA_BROKERS",
}

func TestLoadDefaults(t *testing.T) {
	unsetEnv(t, configKeys...)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, EventsDriverNone, cfg.EventsDriver)
	assert.Equal(t, "account.events", cfg.EventsStream)
	assert.Equal(t, 25, cfg.DB.MaxOpenConns)
	assert.Equal(t, 30*time.Minute, cfg.DB.ConnMaxLifetime)
	assert.True(t, cfg.DB.Migrate)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.CacheEnabled())
}

func TestLoadFromEnvironment(t *testing.T) {
	unsetEnv(t, configKeys...)
	t.Setenv("PORT", "9000")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("EVENTS_DRIVER", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_CACHE_TTL", "5s")
	t.Setenv("DATABASE_MIGRATE", "false")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Second, cfg.Redis.CacheTTL)
	assert.False(t, cfg.DB.Migrate)
	assert.True(t, cfg.CacheEnabled())
}

func TestLoadFromDotenvFile(t *testing.T) {
	unsetEnv(t, configKeys...)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL=debug\nSTORE_DRIVER=memory\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)

	// godotenv writes into the process environment; drop what it set.
	unsetEnv(t, "LOG_LEVEL", "STORE_DRIVER")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "valid memory", cfg: Config{StoreDriver: StoreDriverMemory, EventsDriver: EventsDriverNone}},
		{name: "unknown store", cfg: Config{StoreDriver: "sqlite", EventsDriver: EventsDriverNone}, wantErr: "STORE_DRIVER"},
		{name: "unknown events", cfg: Config{StoreDriver: StoreDriverPostgres, EventsDriver: "nats"}, wantErr: "EVENTS_DRIVER"},
		{name: "redis events without addr", cfg: Config{StoreDriver: StoreDriverPostgres, EventsDriver: EventsDriverRedis}, wantErr: "REDIS_ADDR"},
		{name: "kafka without brokers", cfg: Config{StoreDriver: StoreDriverPostgres, EventsDriver: EventsDriverKafka}, wantErr: "KAFKA_BROKERS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestMaskedDatabaseURL(t *testing.T) {
	cfg := Config{DB: DBConfig{URL: "postgres://user:secret@db:5432/x"}}
	assert.Equal(t, "po****32/x", cfg.MaskedDatabaseURL())
	assert.Equal(t, "****", maskValue("short"))
}
