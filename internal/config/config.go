package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string // "" disables the health server

	Env string // "dev" | "prod"

	// Storage
	Storage string // "sqlite" | "file"
	DBPath  string // e.g. "./data/vigil.db"
	DataDir string // JSON files for the "file" backend

	MQTT MQTT

	TickInterval  time.Duration
	DeclutterStep float64

	// DeviceAliases maps firmware ids to display names. Nil means use the
	// built-in table.
	DeviceAliases map[string]string

	LogLevel slog.Level
}

type MQTT struct {
	BrokerURL     string // "" disables the subscriber
	ClientID      string
	Username      string
	Password      string
	LocationTopic string
	BatteryTopic  string
}

// Load reads the given dotenv files (".env" when none are named) into the
// process environment without overriding variables that are already set,
// then builds the config with FromEnv. Missing files are ignored.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	return FromEnv(), nil
}

func FromEnv() Config {
	env := strings.ToLower(getenvDefault("VIGIL_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	storage := strings.ToLower(getenvDefault("VIGIL_STORAGE", "sqlite"))
	if storage != "sqlite" && storage != "file" {
		storage = "sqlite"
	}

	broker, ok := os.LookupEnv("VIGIL_MQTT_BROKER")
	if !ok {
		broker = "tcp://localhost:1883"
	}

	step := getenvFloat("VIGIL_DECLUTTER_STEP", 0.001)
	if step <= 0 {
		step = 0.001
	}

	return Config{
		HTTPAddr: getenvDefault("VIGIL_HTTP_ADDR", ":8080"),
		GRPCAddr: lookupDefault("VIGIL_GRPC_ADDR", ":9090"),
		Env:      env,

		Storage: storage,
		DBPath:  getenvDefault("VIGIL_DB_PATH", "./data/vigil.db"),
		DataDir: getenvDefault("VIGIL_DATA_DIR", "./data"),

		MQTT: MQTT{
			BrokerURL:     strings.TrimSpace(broker),
			ClientID:      getenvDefault("VIGIL_MQTT_CLIENT_ID", "vigil-server"),
			Username:      os.Getenv("VIGIL_MQTT_USERNAME"),
			Password:      os.Getenv("VIGIL_MQTT_PASSWORD"),
			LocationTopic: getenvDefault("VIGIL_MQTT_LOCATION_TOPIC", "esp32/bssid"),
			BatteryTopic:  getenvDefault("VIGIL_MQTT_BATTERY_TOPIC", "esp32/battery"),
		},

		TickInterval:  time.Duration(getenvInt("VIGIL_TICK_INTERVAL_SECONDS", 10)) * time.Second,
		DeclutterStep: step,
		DeviceAliases: parseAliases(os.Getenv("VIGIL_DEVICE_ALIASES")),
		LogLevel:      parseLevel(os.Getenv("VIGIL_LOG_LEVEL")),
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// lookupDefault is getenvDefault but keeps an explicitly empty value.
func lookupDefault(key, def string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	return strings.TrimSpace(v)
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// parseAliases reads "raw=name,raw2=name2". Malformed pairs are skipped.
func parseAliases(v string) map[string]string {
	pairs := splitCSV(v)
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		raw, name, ok := strings.Cut(p, "=")
		raw, name = strings.TrimSpace(raw), strings.TrimSpace(name)
		if !ok || raw == "" || name == "" {
			continue
		}
		out[raw] = name
	}
	return out
}

func parseLevel(v string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
