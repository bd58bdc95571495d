package cache

import (
	"errors"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		RedisURL:  "redis://localhost:6379/0",
		KeySecret: "server-secret",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid minimal", func(c *Config) {}, false},
		{"missing url", func(c *Config) { c.RedisURL = "" }, true},
		{"malformed url", func(c *Config) { c.RedisURL = "://nope" }, true},
		{"url without host", func(c *Config) { c.RedisURL = "redis://" }, true},
		{"missing secret", func(c *Config) { c.KeySecret = "" }, true},
		{"ttl too small", func(c *Config) { c.DefaultTTL = 500 * time.Millisecond }, true},
		{"ttl too large", func(c *Config) { c.DefaultTTL = 48 * time.Hour }, true},
		{"ttl at max", func(c *Config) { c.DefaultTTL = 24 * time.Hour }, false},
		{"local entries below min", func(c *Config) { c.MaxLocalEntries = -1 }, true},
		{"local entries above max", func(c *Config) { c.MaxLocalEntries = MaxLocalEntries + 1 }, true},
		{"local entries at max", func(c *Config) { c.MaxLocalEntries = MaxLocalEntries }, false},
		{"evict fraction above 1", func(c *Config) { c.EvictFraction = 1.5 }, true},
		{"health interval too long", func(c *Config) { c.HealthInterval = 10 * time.Minute }, true},
		{"negative rate limit", func(c *Config) { c.RateLimit = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfiguration) {
					t.Errorf("Validate() = %v, want ErrInvalidConfiguration", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := validConfig().withDefaults()

	if cfg.Namespace != DefaultNamespace {
		t.Errorf("Namespace = %q, want %q", cfg.Namespace, DefaultNamespace)
	}
	if cfg.DefaultTTL != DefaultTTL {
		t.Errorf("DefaultTTL = %v, want %v", cfg.DefaultTTL, DefaultTTL)
	}
	if cfg.MaxLocalEntries != DefaultMaxLocalEntries {
		t.Errorf("MaxLocalEntries = %d, want %d", cfg.MaxLocalEntries, DefaultMaxLocalEntries)
	}
	if cfg.EvictFraction != DefaultEvictFraction {
		t.Errorf("EvictFraction = %v, want %v", cfg.EvictFraction, DefaultEvictFraction)
	}
	if cfg.HealthInterval != DefaultHealthInterval {
		t.Errorf("HealthInterval = %v, want %v", cfg.HealthInterval, DefaultHealthInterval)
	}
	if cfg.RateLimit != DefaultRateLimit {
		t.Errorf("RateLimit = %d, want %d", cfg.RateLimit, DefaultRateLimit)
	}
	if cfg.RateWindow != DefaultRateWindow {
		t.Errorf("RateWindow = %v, want %v", cfg.RateWindow, DefaultRateWindow)
	}
}

func TestConfig_WithDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := validConfig()
	cfg.Namespace = "clinic"
	cfg.MaxLocalEntries = 50
	cfg.RateLimit = 10

	cfg = cfg.withDefaults()
	if cfg.Namespace != "clinic" || cfg.MaxLocalEntries != 50 || cfg.RateLimit != 10 {
		t.Errorf("withDefaults() overwrote explicit values: %+v", cfg)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvRedisURL, "redis://cache.internal:6379/1")
	t.Setenv(EnvKeySecret, "top-secret")
	t.Setenv(EnvNamespace, "clinic")
	t.Setenv(EnvDefaultTTL, "600")
	t.Setenv(EnvMaxLocalEntries, "250")
	t.Setenv(EnvCompression, "true")
	t.Setenv(EnvHealthIntervalMS, "5000")
	t.Setenv(EnvRateLimit, "100")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.RedisURL != "redis://cache.internal:6379/1" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
	if cfg.KeySecret != "top-secret" {
		t.Errorf("KeySecret = %q", cfg.KeySecret)
	}
	if cfg.Namespace != "clinic" {
		t.Errorf("Namespace = %q", cfg.Namespace)
	}
	if cfg.DefaultTTL != 10*time.Minute {
		t.Errorf("DefaultTTL = %v, want 10m", cfg.DefaultTTL)
	}
	if cfg.MaxLocalEntries != 250 {
		t.Errorf("MaxLocalEntries = %d, want 250", cfg.MaxLocalEntries)
	}
	if !cfg.Compression {
		t.Error("Compression = false, want true")
	}
	if cfg.HealthInterval != 5*time.Second {
		t.Errorf("HealthInterval = %v, want 5s", cfg.HealthInterval)
	}
	if cfg.RateLimit != 100 {
		t.Errorf("RateLimit = %d, want 100", cfg.RateLimit)
	}
}

func TestFromEnv_ExpandsSecretReferences(t *testing.T) {
	t.Setenv("VAULT_CACHE_SECRET", "material-from-vault")
	t.Setenv(EnvRedisURL, "redis://localhost:6379")
	t.Setenv(EnvKeySecret, "${VAULT_CACHE_SECRET}")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.KeySecret != "material-from-vault" {
		t.Errorf("KeySecret = %q, want expanded value", cfg.KeySecret)
	}
}

func TestFromEnv_MissingReferenceFails(t *testing.T) {
	t.Setenv(EnvRedisURL, "redis://localhost:6379")
	t.Setenv(EnvKeySecret, "${RESPCACHE_TEST_UNSET_VAR}")

	if _, err := FromEnv(); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("FromEnv() error = %v, want ErrInvalidConfiguration", err)
	}
}

func TestFromEnv_MalformedNumbers(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"ttl", EnvDefaultTTL},
		{"max entries", EnvMaxLocalEntries},
		{"compression", EnvCompression},
		{"health interval", EnvHealthIntervalMS},
		{"rate limit", EnvRateLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvRedisURL, "redis://localhost:6379")
			t.Setenv(EnvKeySecret, "s")
			t.Setenv(tt.key, "not-a-number")

			if _, err := FromEnv(); !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("FromEnv() error = %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}
