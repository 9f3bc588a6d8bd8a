package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

type DuplicatePolicy string

const (
	DropDuplicates      DuplicatePolicy = "drop"
	SubscribeDuplicates DuplicatePolicy = "subscribe"
)

const (
	defaultBundleDir       = "."
	defaultHTTPTimeout     = 10 * time.Second
	defaultRemoteRateLimit = 10.0
	defaultRemoteBurst     = 20
)

type Config struct {
	sentryDSN       string
	bundleDir       string
	httpTimeout     time.Duration
	remoteRateLimit float64
	remoteBurst     int
	cacheCapacity   uint64
	duplicatePolicy DuplicatePolicy
	otlpEndpoint    string
	env             environment
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) BundleDir() string {
	return c.bundleDir
}

func (c *Config) HTTPTimeout() time.Duration {
	return c.httpTimeout
}

// RemoteRateLimit is the sustained number of remote fetches per second per host
func (c *Config) RemoteRateLimit() float64 {
	return c.remoteRateLimit
}

func (c *Config) RemoteBurst() int {
	return c.remoteBurst
}

// CacheCapacity is the max number of decoded images kept in memory. 0 means unbounded.
func (c *Config) CacheCapacity() uint64 {
	return c.cacheCapacity
}

func (c *Config) DuplicatePolicy() DuplicatePolicy {
	return c.duplicatePolicy
}

func (c *Config) TelemetryEnabled() bool {
	return c.otlpEndpoint != ""
}

func (c *Config) Environment() string {
	return string(c.env)
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, bundleDir: %s, httpTimeout: %s, remoteRateLimit: %g, remoteBurst: %d, cacheCapacity: %d, duplicatePolicy: %s, telemetry: %t, ...}",
		string(c.env),
		c.bundleDir,
		c.httpTimeout,
		c.remoteRateLimit,
		c.remoteBurst,
		c.cacheCapacity,
		c.duplicatePolicy,
		c.TelemetryEnabled(),
	)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}
	invalidValue := func(key, value string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, value)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("IMAGECACHE_ENVIRONMENT")
	if !ok {
		return missingKey("IMAGECACHE_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return invalidValue("IMAGECACHE_ENVIRONMENT", rawEnv)
	}
	if string(env) == "" {
		panic("logic error: env is empty")
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	if env == production || env == staging {
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
	}

	bundleDir := defaultBundleDir
	if raw := os.Getenv("IMAGECACHE_BUNDLE_DIR"); raw != "" {
		bundleDir = raw
	}

	httpTimeout := defaultHTTPTimeout
	if raw := os.Getenv("IMAGECACHE_HTTP_TIMEOUT"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return invalidValue("IMAGECACHE_HTTP_TIMEOUT", raw)
		}
		httpTimeout = parsed
	}

	remoteRateLimit := defaultRemoteRateLimit
	if raw := os.Getenv("IMAGECACHE_REMOTE_RATE_LIMIT"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			return invalidValue("IMAGECACHE_REMOTE_RATE_LIMIT", raw)
		}
		remoteRateLimit = parsed
	}

	remoteBurst := defaultRemoteBurst
	if raw := os.Getenv("IMAGECACHE_REMOTE_BURST"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return invalidValue("IMAGECACHE_REMOTE_BURST", raw)
		}
		remoteBurst = parsed
	}

	var cacheCapacity uint64
	if raw := os.Getenv("IMAGECACHE_CACHE_CAPACITY"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return invalidValue("IMAGECACHE_CACHE_CAPACITY", raw)
		}
		cacheCapacity = parsed
	}

	duplicatePolicy := DropDuplicates
	if raw := os.Getenv("IMAGECACHE_DUPLICATE_POLICY"); raw != "" {
		switch DuplicatePolicy(raw) {
		case DropDuplicates, SubscribeDuplicates:
			duplicatePolicy = DuplicatePolicy(raw)
		default:
			return invalidValue("IMAGECACHE_DUPLICATE_POLICY", raw)
		}
	}

	return Config{
		sentryDSN:       sentryDSN,
		bundleDir:       bundleDir,
		httpTimeout:     httpTimeout,
		remoteRateLimit: remoteRateLimit,
		remoteBurst:     remoteBurst,
		cacheCapacity:   cacheCapacity,
		duplicatePolicy: duplicatePolicy,
		otlpEndpoint:    otlpEndpoint,
		env:             env,
	}, nil
}
