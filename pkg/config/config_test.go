package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Search.LargeResultThreshold != 200 {
		t.Errorf("LargeResultThreshold = %d, want 200", cfg.Search.LargeResultThreshold)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Index.RefreshInterval != 24*time.Hour {
		t.Errorf("Index.RefreshInterval = %v, want 24h", cfg.Index.RefreshInterval)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9999
index:
  url: http://example.test/index.json
  refreshInterval: 1h
search:
  largeResultThreshold: 50
logging:
  level: debug
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Index.URL != "http://example.test/index.json" {
		t.Errorf("Index.URL = %q", cfg.Index.URL)
	}
	if cfg.Index.RefreshInterval != time.Hour {
		t.Errorf("Index.RefreshInterval = %v, want 1h", cfg.Index.RefreshInterval)
	}
	if cfg.Search.LargeResultThreshold != 50 {
		t.Errorf("LargeResultThreshold = %d, want 50", cfg.Search.LargeResultThreshold)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	// untouched sections keep their defaults
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q, want default", cfg.Redis.Addr)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RS_SERVER_PORT", "7000")
	t.Setenv("RS_SEARCH_LARGE_RESULT_THRESHOLD", "10")
	t.Setenv("RS_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("RS_SEARCH_CACHE_ENABLED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Search.LargeResultThreshold != 10 {
		t.Errorf("LargeResultThreshold = %d, want 10", cfg.Search.LargeResultThreshold)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Search.CacheEnabled {
		t.Error("expected cache to be disabled by env override")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Search.LargeResultThreshold = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected negative threshold to be rejected")
	}

	cfg = defaultConfig()
	cfg.Index.URL = ""
	cfg.Index.SnapshotDir = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected missing index source to be rejected")
	}
}

func TestValidateServer(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit = -1 }, false},
		{"rate limit without window", func(c *Config) { c.Server.RateWindow = 0 }, false},
		{"limiting disabled", func(c *Config) { c.Server.RateLimit = 0; c.Server.RateWindow = 0 }, true},
		{"admin key digest", func(c *Config) {
			c.Server.AdminKeys = []string{"9F86D081884C7D659A2FEAA0C55AD015A3BF4F1B2B0B822CD15D6C15B0F00A08"}
		}, true},
		{"raw admin key", func(c *Config) { c.Server.AdminKeys = []string{"secret"} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() error = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestLoadServerEnvOverrides(t *testing.T) {
	t.Setenv("RS_SERVER_CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("RS_SERVER_RATE_LIMIT", "0")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != "https://a.example" {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Server.RateLimit != 0 {
		t.Errorf("RateLimit = %d, want 0", cfg.Server.RateLimit)
	}
}
