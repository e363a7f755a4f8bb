package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Run modes.
const (
	RunModeServe      = "serve"
	RunModeOnceFull   = "once-full"
	RunModeOnceRecent = "once-recent"
)

// Normalized store backends.
const (
	NormStoreSQL    = "sql"
	NormStoreBadger = "badger"
)

// Database drivers for the SQL store.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	RunMode         string

	// Normalization policy.
	Timezone          string
	Location          *time.Location
	MinSamples        int
	RecentWindowHours int

	// Scheduling.
	RecentInterval  time.Duration
	FullInterval    time.Duration
	BackfillOnStart bool

	// SQL store (raw samples, and normalized records when NormStore is "sql").
	DBDriver         string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	SQLitePath       string

	// Normalized record store.
	NormStore     string
	BadgerPath    string
	NormCacheSize int

	// Event publication.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads an optional .env file and then environment variables, applying
// defaults where unset.
func Load() (*Config, error) {
	// A missing .env file is the normal case in containers.
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	tz := sharedcfg.EnvOrDefault("TIMEZONE", "US/Eastern")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	minSamples, err := parseInt("MIN_SAMPLES", 5, 0)
	if err != nil {
		return nil, err
	}
	recentHours, err := parseInt("RECENT_WINDOW_HOURS", 3, 1)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("NORM_CACHE_SIZE", 10000, 0)
	if err != nil {
		return nil, err
	}

	recentInterval, err := parseDuration("RECENT_INTERVAL", "1h")
	if err != nil {
		return nil, err
	}
	fullInterval, err := parseDuration("FULL_INTERVAL", "168h")
	if err != nil {
		return nil, err
	}
	backfillOnStart, err := parseBool("BACKFILL_ON_START", true)
	if err != nil {
		return nil, err
	}
	kafkaEnabled, err := parseBool("KAFKA_ENABLED", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		RunMode:         sharedcfg.EnvOrDefault("RUN_MODE", RunModeServe),

		Timezone:          tz,
		Location:          loc,
		MinSamples:        minSamples,
		RecentWindowHours: recentHours,

		RecentInterval:  recentInterval,
		FullInterval:    fullInterval,
		BackfillOnStart: backfillOnStart,

		DBDriver:         sharedcfg.EnvOrDefault("DB_DRIVER", DriverPostgres),
		PostgresHost:     sharedcfg.EnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort:     sharedcfg.EnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser:     sharedcfg.EnvOrDefault("POSTGRES_USER", "parking"),
		PostgresPassword: sharedcfg.EnvOrDefault("POSTGRES_PASSWORD", "parking"),
		PostgresDB:       sharedcfg.EnvOrDefault("POSTGRES_DB", "parking"),
		PostgresSSLMode:  sharedcfg.EnvOrDefault("POSTGRES_SSLMODE", "disable"),
		SQLitePath:       sharedcfg.EnvOrDefault("SQLITE_PATH", "./data/parking.db"),

		NormStore:     sharedcfg.EnvOrDefault("NORM_STORE", NormStoreSQL),
		BadgerPath:    sharedcfg.EnvOrDefault("BADGER_PATH", "./data/normalized"),
		NormCacheSize: cacheSize,

		KafkaEnabled: kafkaEnabled,
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "normalized-parking"),
	}

	switch cfg.RunMode {
	case RunModeServe, RunModeOnceFull, RunModeOnceRecent:
	default:
		return nil, fmt.Errorf("invalid RUN_MODE %q", cfg.RunMode)
	}
	switch cfg.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q", cfg.DBDriver)
	}
	switch cfg.NormStore {
	case NormStoreSQL, NormStoreBadger:
	default:
		return nil, fmt.Errorf("invalid NORM_STORE %q", cfg.NormStore)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

// DSN returns the connection string for DBDriver: the SQLite path, or a
// PostgreSQL keyword/value string.
func (c *Config) DSN() string {
	if c.DBDriver == DriverSQLite {
		return c.SQLitePath
	}
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// RecentWindow returns the recent-window backtrack depth.
func (c *Config) RecentWindow() time.Duration {
	return time.Duration(c.RecentWindowHours) * time.Hour
}

func parseInt(key string, def, minimum int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minimum)
	}
	return n, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: must be a boolean", key)
	}
	return b, nil
}
