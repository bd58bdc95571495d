package cache

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/clinicore/respcache/secret"
)

// Configuration bounds. Violations are fatal at construction time.
const (
	MinLocalEntries   = 1
	MaxLocalEntries   = 10000
	MinHealthInterval = time.Millisecond
	MaxHealthInterval = 300 * time.Second
)

// Defaults applied by Config.withDefaults.
const (
	DefaultNamespace       = "respcache"
	DefaultTTL             = 30 * time.Minute
	DefaultMaxLocalEntries = 1000
	DefaultHealthInterval  = 30 * time.Second
	DefaultRateLimit       = 1000
	DefaultRateWindow      = time.Minute
)

// Config configures a ResponseCache instance. The zero value is not usable;
// RedisURL and KeySecret are required.
type Config struct {
	// RedisURL is the remote tier connection URL (required).
	RedisURL string

	// KeySecret is the server-side secret mixed into key derivation
	// (required). Supports ${VAR} environment references.
	KeySecret string

	// Namespace prefixes every derived key. Default: "respcache".
	Namespace string

	// DefaultTTL is applied to writes without an explicit TTL.
	// Must be within [1s, 24h]. Default: 30 minutes.
	DefaultTTL time.Duration

	// MaxLocalEntries bounds the local tier, within [1, 10000].
	// Default: 1000.
	MaxLocalEntries int

	// EvictFraction is the share of entries evicted when the local tier is
	// full. Default: 0.20.
	EvictFraction float64

	// Compression enables the gzip entry codec.
	Compression bool

	// HealthInterval is the monitor's probe/sweep period, within
	// [1ms, 300s]. Default: 30 seconds.
	HealthInterval time.Duration

	// RateLimit caps reads per user per RateWindow. Default: 1000.
	RateLimit int

	// RateWindow is the rate limiter window length. Default: 1 minute.
	RateWindow time.Duration

	// RemoteTimeout bounds each remote operation. Default: 5 seconds.
	RemoteTimeout time.Duration

	// ReconnectCeiling caps backed-off reconnect attempts. Default: 5.
	ReconnectCeiling int
}

// Environment variable names consumed by FromEnv.
const (
	EnvRedisURL         = "RESPCACHE_REDIS_URL"
	EnvKeySecret        = "RESPCACHE_KEY_SECRET"
	EnvNamespace        = "RESPCACHE_NAMESPACE"
	EnvDefaultTTL       = "RESPCACHE_DEFAULT_TTL_SECONDS"
	EnvMaxLocalEntries  = "RESPCACHE_MAX_LOCAL_ENTRIES"
	EnvCompression      = "RESPCACHE_COMPRESSION"
	EnvHealthIntervalMS = "RESPCACHE_HEALTH_INTERVAL_MS"
	EnvRateLimit        = "RESPCACHE_RATE_LIMIT"
)

// FromEnv builds a Config from process environment variables. ${VAR}
// references inside the URL and secret are expanded strictly, so a missing
// referenced variable is a configuration error rather than an empty string.
func FromEnv() (Config, error) {
	cfg := Config{
		RedisURL:  os.Getenv(EnvRedisURL),
		KeySecret: os.Getenv(EnvKeySecret),
		Namespace: os.Getenv(EnvNamespace),
	}

	if v := os.Getenv(EnvDefaultTTL); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfiguration, EnvDefaultTTL, err)
		}
		cfg.DefaultTTL = time.Duration(secs) * time.Second
	}
	if v := os.Getenv(EnvMaxLocalEntries); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfiguration, EnvMaxLocalEntries, err)
		}
		cfg.MaxLocalEntries = n
	}
	if v := os.Getenv(EnvCompression); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfiguration, EnvCompression, err)
		}
		cfg.Compression = b
	}
	if v := os.Getenv(EnvHealthIntervalMS); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfiguration, EnvHealthIntervalMS, err)
		}
		cfg.HealthInterval = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv(EnvRateLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfiguration, EnvRateLimit, err)
		}
		cfg.RateLimit = n
	}

	expanded, err := secret.ExpandEnvStrict(cfg.RedisURL)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfiguration, EnvRedisURL, err)
	}
	cfg.RedisURL = expanded

	expanded, err = secret.ExpandEnvStrict(cfg.KeySecret)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfiguration, EnvKeySecret, err)
	}
	cfg.KeySecret = expanded

	return cfg, nil
}

// Validate checks all configured values against their bounds.
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("%w: redis URL is required", ErrInvalidConfiguration)
	}
	u, err := url.Parse(c.RedisURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: redis URL %q is not a well-formed URL", ErrInvalidConfiguration, c.RedisURL)
	}
	if c.KeySecret == "" {
		return fmt.Errorf("%w: key secret is required", ErrInvalidConfiguration)
	}
	if c.DefaultTTL != 0 {
		secs := int(c.DefaultTTL / time.Second)
		if secs < MinTTLSeconds || secs > MaxTTLSeconds {
			return fmt.Errorf("%w: default TTL %v outside [%ds, %ds]",
				ErrInvalidConfiguration, c.DefaultTTL, MinTTLSeconds, MaxTTLSeconds)
		}
	}
	if c.MaxLocalEntries != 0 &&
		(c.MaxLocalEntries < MinLocalEntries || c.MaxLocalEntries > MaxLocalEntries) {
		return fmt.Errorf("%w: max local entries %d outside [%d, %d]",
			ErrInvalidConfiguration, c.MaxLocalEntries, MinLocalEntries, MaxLocalEntries)
	}
	if c.EvictFraction < 0 || c.EvictFraction > 1 {
		return fmt.Errorf("%w: evict fraction %v outside [0, 1]", ErrInvalidConfiguration, c.EvictFraction)
	}
	if c.HealthInterval != 0 &&
		(c.HealthInterval < MinHealthInterval || c.HealthInterval > MaxHealthInterval) {
		return fmt.Errorf("%w: health interval %v outside [%v, %v]",
			ErrInvalidConfiguration, c.HealthInterval, MinHealthInterval, MaxHealthInterval)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: rate limit %d is negative", ErrInvalidConfiguration, c.RateLimit)
	}
	return nil
}

// withDefaults returns a copy with unset fields replaced by defaults.
func (c Config) withDefaults() Config {
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.DefaultTTL == 0 {
		c.DefaultTTL = DefaultTTL
	}
	if c.MaxLocalEntries == 0 {
		c.MaxLocalEntries = DefaultMaxLocalEntries
	}
	if c.EvictFraction == 0 {
		c.EvictFraction = DefaultEvictFraction
	}
	if c.HealthInterval == 0 {
		c.HealthInterval = DefaultHealthInterval
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.RateWindow == 0 {
		c.RateWindow = DefaultRateWindow
	}
	if c.RemoteTimeout == 0 {
		c.RemoteTimeout = DefaultRemoteTimeout
	}
	if c.ReconnectCeiling == 0 {
		c.ReconnectCeiling = DefaultReconnectCeiling
	}
	return c
}
