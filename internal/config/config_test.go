package config

import (
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	c := Default()

	if c.StorageBackend != BackendSQLite {
		t.Errorf("StorageBackend = %q, want sqlite", c.StorageBackend)
	}
	if c.MinSubscribers != 10000 || c.MinViewCount != 5000 {
		t.Errorf("thresholds = %d/%d, want 10000/5000", c.MinSubscribers, c.MinViewCount)
	}
	if c.VideoDelay != 100*time.Millisecond || c.KeywordDelay != time.Second {
		t.Errorf("delays = %v/%v", c.VideoDelay, c.KeywordDelay)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadEnv_Overrides(t *testing.T) {
	t.Setenv("SCOUT_LISTEN_ADDR", ":9999")
	t.Setenv("SCOUT_STORAGE", "memory")
	t.Setenv("SCOUT_MIN_SUBSCRIBERS", "2500")
	t.Setenv("SCOUT_REGION", "GB")
	t.Setenv("SCOUT_PUBLISHED_AFTER", "2024-06-01T00:00:00Z")

	c := Default()
	if err := c.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv failed: %v", err)
	}

	if c.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %q", c.ListenAddr)
	}
	if c.StorageBackend != BackendMemory {
		t.Errorf("StorageBackend = %q", c.StorageBackend)
	}
	if c.MinSubscribers != 2500 {
		t.Errorf("MinSubscribers = %d", c.MinSubscribers)
	}
	if c.Region != "GB" {
		t.Errorf("Region = %q", c.Region)
	}
	if !c.PublishedAfter.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("PublishedAfter = %v", c.PublishedAfter)
	}
	// untouched values keep their defaults
	if c.MinViewCount != 5000 {
		t.Errorf("MinViewCount = %d, want default 5000", c.MinViewCount)
	}
}

func TestLoadEnv_BadInt(t *testing.T) {
	t.Setenv("SCOUT_MIN_SUBSCRIBERS", "lots")

	c := Default()
	if err := c.LoadEnv(); err == nil {
		t.Error("expected error for non-numeric SCOUT_MIN_SUBSCRIBERS")
	}
}

func TestLoadEnv_BadPublishedAfter(t *testing.T) {
	t.Setenv("SCOUT_PUBLISHED_AFTER", "last week")

	c := Default()
	if err := c.LoadEnv(); err == nil {
		t.Error("expected error for malformed SCOUT_PUBLISHED_AFTER")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"default", func(c *Config) {}, true},
		{"memory backend", func(c *Config) { c.StorageBackend = BackendMemory }, true},
		{"empty listen addr", func(c *Config) { c.ListenAddr = "" }, false},
		{"unknown backend", func(c *Config) { c.StorageBackend = "redis" }, false},
		{"sqlite without path", func(c *Config) { c.SQLitePath = "" }, false},
		{"postgres without dsn", func(c *Config) { c.StorageBackend = BackendPostgres }, false},
		{"zero subscribers", func(c *Config) { c.MinSubscribers = 0 }, false},
		{"max results over api cap", func(c *Config) { c.MaxResultsPerQuery = 51 }, false},
		{"empty region", func(c *Config) { c.Region = "" }, false},
		{"negative delay", func(c *Config) { c.VideoDelay = -time.Second }, false},
		{"zero concurrency", func(c *Config) { c.MaxConcurrentTasks = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("SCOUT_TEST_STR", "value")
	t.Setenv("SCOUT_TEST_INT", "42")
	t.Setenv("SCOUT_TEST_EMPTY", "")

	if v, ok := EnvString("SCOUT_TEST_STR"); !ok || v != "value" {
		t.Errorf("EnvString = %q, %v", v, ok)
	}
	if _, ok := EnvString("SCOUT_TEST_EMPTY"); ok {
		t.Error("empty variable reported as present")
	}
	if _, ok := EnvString("SCOUT_TEST_ABSENT"); ok {
		t.Error("absent variable reported as present")
	}

	if v, ok, err := EnvInt("SCOUT_TEST_INT"); err != nil || !ok || v != 42 {
		t.Errorf("EnvInt = %d, %v, %v", v, ok, err)
	}
	if _, ok, err := EnvInt("SCOUT_TEST_ABSENT"); err != nil || ok {
		t.Errorf("absent int: ok=%v err=%v", ok, err)
	}
	if _, _, err := EnvInt("SCOUT_TEST_STR"); err == nil {
		t.Error("expected error for non-numeric int variable")
	}
}
