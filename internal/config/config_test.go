package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Vigil/internal/config"
)

var allKeys = []string{
	"VIGIL_HTTP_ADDR", "VIGIL_GRPC_ADDR", "VIGIL_ENV", "VIGIL_STORAGE",
	"VIGIL_DB_PATH", "VIGIL_DATA_DIR", "VIGIL_MQTT_BROKER", "VIGIL_MQTT_CLIENT_ID",
	"VIGIL_MQTT_USERNAME", "VIGIL_MQTT_PASSWORD", "VIGIL_MQTT_LOCATION_TOPIC",
	"VIGIL_MQTT_BATTERY_TOPIC", "VIGIL_TICK_INTERVAL_SECONDS", "VIGIL_DECLUTTER_STEP",
	"VIGIL_DEVICE_ALIASES", "VIGIL_LOG_LEVEL",
}

// clearEnv unsets every VIGIL_ key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		if v, ok := os.LookupEnv(k); ok {
			require.NoError(t, os.Unsetenv(k))
			t.Cleanup(func() { os.Setenv(k, v) })
		} else {
			t.Cleanup(func() { os.Unsetenv(k) })
		}
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := config.FromEnv()
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":9090", cfg.GRPCAddr)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "sqlite", cfg.Storage)
	assert.Equal(t, "./data/vigil.db", cfg.DBPath)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.BrokerURL)
	assert.Equal(t, "esp32/bssid", cfg.MQTT.LocationTopic)
	assert.Equal(t, "esp32/battery", cfg.MQTT.BatteryTopic)
	assert.Equal(t, 10*time.Second, cfg.TickInterval)
	assert.Equal(t, 0.001, cfg.DeclutterStep)
	assert.Nil(t, cfg.DeviceAliases)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("VIGIL_ENV", "PROD")
	t.Setenv("VIGIL_STORAGE", "file")
	t.Setenv("VIGIL_MQTT_BROKER", "")
	t.Setenv("VIGIL_GRPC_ADDR", "")
	t.Setenv("VIGIL_TICK_INTERVAL_SECONDS", "3")
	t.Setenv("VIGIL_DECLUTTER_STEP", "0.0005")
	t.Setenv("VIGIL_DEVICE_ALIASES", "ESP32C6_1=Agente_1, bad, =x, ESP32C6_9 = Agente_9")
	t.Setenv("VIGIL_LOG_LEVEL", "debug")

	cfg := config.FromEnv()
	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "file", cfg.Storage)
	assert.Empty(t, cfg.MQTT.BrokerURL, "an explicitly empty broker disables mqtt")
	assert.Empty(t, cfg.GRPCAddr)
	assert.Equal(t, 3*time.Second, cfg.TickInterval)
	assert.Equal(t, 0.0005, cfg.DeclutterStep)
	assert.Equal(t, map[string]string{"ESP32C6_1": "Agente_1", "ESP32C6_9": "Agente_9"}, cfg.DeviceAliases)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestFromEnv_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("VIGIL_ENV", "staging")
	t.Setenv("VIGIL_STORAGE", "redis")
	t.Setenv("VIGIL_TICK_INTERVAL_SECONDS", "-5")
	t.Setenv("VIGIL_DECLUTTER_STEP", "wide")
	t.Setenv("VIGIL_LOG_LEVEL", "loud")

	cfg := config.FromEnv()
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "sqlite", cfg.Storage)
	assert.Equal(t, 10*time.Second, cfg.TickInterval)
	assert.Equal(t, 0.001, cfg.DeclutterStep)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_DotenvDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("VIGIL_HTTP_ADDR=:7000\nVIGIL_DB_PATH=/tmp/from-file.db\n"), 0o600))
	t.Setenv("VIGIL_DB_PATH", "/tmp/from-env.db")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTPAddr)
	assert.Equal(t, "/tmp/from-env.db", cfg.DBPath)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}
