// Package config holds runtime configuration for the scout daemon. Values
// come from defaults, an optional .env file, environment variables, and
// flags, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Backend names for the task store.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds daemon configuration.
type Config struct {
	ListenAddr  string
	MetricsAddr string

	StorageBackend string // sqlite, postgres, or memory
	SQLitePath     string
	PostgresDSN    string

	MinSubscribers     int64
	MinViewCount       int64
	MaxResultsPerQuery int
	PublishedAfter     time.Time
	Region             string

	VideoDelay         time.Duration
	KeywordDelay       time.Duration
	MaxConcurrentTasks int64

	RequestTimeout time.Duration
	Verbose        bool
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		ListenAddr:         ":8080",
		MetricsAddr:        ":9090",
		StorageBackend:     BackendSQLite,
		SQLitePath:         "scout.db",
		MinSubscribers:     10000,
		MinViewCount:       5000,
		MaxResultsPerQuery: 50,
		PublishedAfter:     time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Region:             "US",
		VideoDelay:         100 * time.Millisecond,
		KeywordDelay:       time.Second,
		MaxConcurrentTasks: 4,
		RequestTimeout:     30 * time.Second,
	}
}

// LoadEnv reads a .env file if present and applies SCOUT_* environment
// overrides onto the config. A missing .env file is not an error.
func (c *Config) LoadEnv() error {
	_ = godotenv.Load()

	if v, ok := EnvString("SCOUT_LISTEN_ADDR"); ok {
		c.ListenAddr = v
	}
	if v, ok := EnvString("SCOUT_METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}
	if v, ok := EnvString("SCOUT_STORAGE"); ok {
		c.StorageBackend = v
	}
	if v, ok := EnvString("SCOUT_SQLITE_PATH"); ok {
		c.SQLitePath = v
	}
	if v, ok := EnvString("SCOUT_POSTGRES_DSN"); ok {
		c.PostgresDSN = v
	}
	if v, ok := EnvString("SCOUT_REGION"); ok {
		c.Region = v
	}
	if v, ok, err := EnvInt("SCOUT_MIN_SUBSCRIBERS"); err != nil {
		return err
	} else if ok {
		c.MinSubscribers = int64(v)
	}
	if v, ok, err := EnvInt("SCOUT_MIN_VIEW_COUNT"); err != nil {
		return err
	} else if ok {
		c.MinViewCount = int64(v)
	}
	if v, ok, err := EnvInt("SCOUT_MAX_RESULTS"); err != nil {
		return err
	} else if ok {
		c.MaxResultsPerQuery = v
	}
	if v, ok, err := EnvInt("SCOUT_MAX_CONCURRENT_TASKS"); err != nil {
		return err
	} else if ok {
		c.MaxConcurrentTasks = int64(v)
	}
	if v, ok := EnvString("SCOUT_PUBLISHED_AFTER"); ok {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("invalid SCOUT_PUBLISHED_AFTER: %w", err)
		}
		c.PublishedAfter = t
	}

	return nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	switch c.StorageBackend {
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite path cannot be empty")
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres dsn cannot be empty")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	if c.MinSubscribers <= 0 {
		return fmt.Errorf("min subscribers must be positive")
	}
	if c.MinViewCount <= 0 {
		return fmt.Errorf("min view count must be positive")
	}
	if c.MaxResultsPerQuery <= 0 || c.MaxResultsPerQuery > 50 {
		return fmt.Errorf("max results per query must be in 1..50")
	}
	if c.Region == "" {
		return fmt.Errorf("region cannot be empty")
	}
	if c.VideoDelay < 0 || c.KeywordDelay < 0 {
		return fmt.Errorf("delays cannot be negative")
	}
	if c.MaxConcurrentTasks <= 0 {
		return fmt.Errorf("max concurrent tasks must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	return nil
}

// EnvString reads a string environment variable, reporting presence.
func EnvString(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// EnvInt reads an integer environment variable, reporting presence.
func EnvInt(key string) (int, bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, true, nil
}
