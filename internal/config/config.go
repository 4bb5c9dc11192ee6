// Package config loads runtime settings for the API service and the web
// client from environment variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the API service settings.
type Config struct {
	ServiceName    string
	ServiceVersion string
	GitSHA         string
	Port           string
	GinMode        string
	LogLevel       string
	TracingEnabled bool

	AllowedOrigins []string
	TrustedProxies []string
	BodyLimit      int64

	RateLimit RateLimitConfig
	Database  DatabaseConfig
}

type RateLimitConfig struct {
	Enabled bool
	Max     int
	Window  time.Duration
}

type DatabaseConfig struct {
	URL             string
	ForceIPv4       bool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
	QueryTimeout    time.Duration
	MigrateOnStart  bool
}

// WebConfig holds the web client settings.
type WebConfig struct {
	Port       string
	APIBase    string
	APITimeout time.Duration
	BodyLimit  int64
	GinMode    string
	LogLevel   string
}

// LoadDotEnv reads the given .env files into the process environment.
// Variables already set win, and missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Load reads the API service configuration, applying defaults for anything
// that is unset.
func Load() Config {
	return Config{
		ServiceName:    envStr("SERVICE_NAME", "newsletter-api"),
		ServiceVersion: envStr("APP_VERSION", "dev"),
		GitSHA:         envStr("GIT_SHA", "unknown"),
		Port:           envStr("PORT", "5555"),
		GinMode:        os.Getenv("GIN_MODE"),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		TracingEnabled: envBool("TRACING_ENABLED", false),
		AllowedOrigins: envList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		TrustedProxies: envList("TRUSTED_PROXIES", nil),
		BodyLimit:      int64(envInt("BODY_LIMIT_BYTES", 1<<20)),
		RateLimit: RateLimitConfig{
			Enabled: envBool("RATE_LIMIT_ENABLED", true),
			Max:     envInt("RATE_LIMIT_MAX", 120),
			Window:  envDur("RATE_LIMIT_WINDOW", time.Minute),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			ForceIPv4:       envBool("DB_FORCE_IPV4", false),
			MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnectTimeout:  envDur("DB_CONNECT_TIMEOUT", 5*time.Second),
			QueryTimeout:    envDur("DB_QUERY_TIMEOUT", 5*time.Second),
			MigrateOnStart:  envBool("MIGRATE_ON_START", true),
		},
	}
}

// Validate reports every setting that cannot be used to start the service.
func (c Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT must be numeric, got %q", c.Port))
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Max < 1 {
			errs = append(errs, fmt.Errorf("RATE_LIMIT_MAX must be positive, got %d", c.RateLimit.Max))
		}
		if c.RateLimit.Window <= 0 {
			errs = append(errs, fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimit.Window))
		}
	}
	if c.Database.MaxOpenConns < 1 {
		errs = append(errs, fmt.Errorf("DB_MAX_OPEN_CONNS must be positive, got %d", c.Database.MaxOpenConns))
	}
	if c.Database.QueryTimeout <= 0 {
		errs = append(errs, fmt.Errorf("DB_QUERY_TIMEOUT must be positive, got %s", c.Database.QueryTimeout))
	}
	if c.BodyLimit <= 0 {
		errs = append(errs, fmt.Errorf("BODY_LIMIT_BYTES must be positive, got %d", c.BodyLimit))
	}
	for _, p := range c.TrustedProxies {
		if !validProxy(p) {
			errs = append(errs, fmt.Errorf("TRUSTED_PROXIES entry %q is not an IP or CIDR", p))
		}
	}
	return errors.Join(errs...)
}

func validProxy(p string) bool {
	if net.ParseIP(p) != nil {
		return true
	}
	_, _, err := net.ParseCIDR(p)
	return err == nil
}

func LoadWeb() WebConfig {
	return WebConfig{
		Port:       envStr("WEB_PORT", "3000"),
		APIBase:    strings.TrimRight(envStr("API_BASE", "http://127.0.0.1:5555"), "/"),
		APITimeout: envDur("API_TIMEOUT", 10*time.Second),
		BodyLimit:  int64(envInt("WEB_BODY_LIMIT_BYTES", 64<<10)),
		GinMode:    os.Getenv("GIN_MODE"),
		LogLevel:   envStr("LOG_LEVEL", "info"),
	}
}

func envStr(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(k))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}

func envList(k string, d []string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return d
	}
	return out
}
